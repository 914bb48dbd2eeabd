package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rybaukrainy/portal/internal/apperr"
	"github.com/rybaukrainy/portal/internal/draft"
	"github.com/rybaukrainy/portal/internal/editor"
	"github.com/rybaukrainy/portal/internal/ingest"
	"github.com/rybaukrainy/portal/internal/middleware"
)

type openRequest struct {
	ArticleID string `json:"article_id"`
}

type inputRequest struct {
	Content string `json:"content"`
}

type blurRequest struct {
	Content *string `json:"content"`
}

type tabRequest struct {
	Tab editor.Tab `json:"tab" validate:"required,oneof=editor html preview"`
}

type fieldRequest struct {
	Field draft.Field `json:"field" validate:"required"`
	Value string      `json:"value"`
}

type imageURLRequest struct {
	URL       string            `json:"url" validate:"required,url"`
	Cover     bool              `json:"cover"`
	Selection *editor.Selection `json:"selection"`
}

type saveRequest struct {
	Force bool `json:"force"`
}

// session returns the editing session named in the path for the current admin
func (h *Handlers) session(c *fiber.Ctx) (*editor.Session, error) {
	return h.Editor.Get(c.Params("id"), middleware.VisitorFrom(c).ProfileID)
}

// OpenEditor handles POST /api/v1/admin/editor. An empty article_id starts
// a new article.
func (h *Handlers) OpenEditor(c *fiber.Ctx) error {
	var req openRequest
	if len(c.Body()) > 0 {
		if err := middleware.Bind(c, &req); err != nil {
			return err
		}
	}
	s, err := h.Editor.Open(c.UserContext(), middleware.VisitorFrom(c).ProfileID, req.ArticleID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(s.View())
}

// GetEditor handles GET /api/v1/admin/editor/:id
func (h *Handlers) GetEditor(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(s.View())
}

// EditorCommand handles POST /api/v1/admin/editor/:id/command
func (h *Handlers) EditorCommand(c *fiber.Ctx) error {
	var cmd editor.Command
	if err := middleware.Bind(c, &cmd); err != nil {
		return err
	}
	return h.withSession(c, func(s *editor.Session) (editor.View, error) {
		return s.Apply(cmd)
	})
}

// EditorInput handles POST /api/v1/admin/editor/:id/input
func (h *Handlers) EditorInput(c *fiber.Ctx) error {
	var req inputRequest
	if err := middleware.Bind(c, &req); err != nil {
		return err
	}
	return h.withSession(c, func(s *editor.Session) (editor.View, error) {
		return s.Input(req.Content)
	})
}

// EditorBlur handles POST /api/v1/admin/editor/:id/blur
func (h *Handlers) EditorBlur(c *fiber.Ctx) error {
	var req blurRequest
	if len(c.Body()) > 0 {
		if err := middleware.Bind(c, &req); err != nil {
			return err
		}
	}
	return h.withSession(c, func(s *editor.Session) (editor.View, error) {
		return s.Blur(req.Content)
	})
}

// EditorTab handles POST /api/v1/admin/editor/:id/tab
func (h *Handlers) EditorTab(c *fiber.Ctx) error {
	var req tabRequest
	if err := middleware.Bind(c, &req); err != nil {
		return err
	}
	return h.withSession(c, func(s *editor.Session) (editor.View, error) {
		return s.SwitchTab(req.Tab)
	})
}

// EditorField handles POST /api/v1/admin/editor/:id/field
func (h *Handlers) EditorField(c *fiber.Ctx) error {
	var req fieldRequest
	if err := middleware.Bind(c, &req); err != nil {
		return err
	}
	return h.withSession(c, func(s *editor.Session) (editor.View, error) {
		return s.SetField(req.Field, req.Value)
	})
}

// EditorImage handles POST /api/v1/admin/editor/:id/image, a multipart form
// with the file and optional cover, start and end fields
func (h *Handlers) EditorImage(c *fiber.Ctx) error {
	f, err := formImage(c)
	if err != nil {
		return err
	}
	req := editor.ImageRequest{File: &f, Cover: c.FormValue("cover") == "true"}
	if start, err := strconv.Atoi(c.FormValue("start")); err == nil {
		end, err := strconv.Atoi(c.FormValue("end"))
		if err != nil {
			end = start
		}
		req.Selection = &editor.Selection{Start: start, End: end}
	}
	return h.attach(c, req)
}

// EditorImageURL handles POST /api/v1/admin/editor/:id/image-url
func (h *Handlers) EditorImageURL(c *fiber.Ctx) error {
	var body imageURLRequest
	if err := middleware.Bind(c, &body); err != nil {
		return err
	}
	return h.attach(c, editor.ImageRequest{URL: body.URL, Cover: body.Cover, Selection: body.Selection})
}

func (h *Handlers) attach(c *fiber.Ctx, req editor.ImageRequest) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	v, err := s.AttachImage(c.UserContext(), middleware.SessionFrom(c), req)
	if err != nil {
		return err
	}
	return c.JSON(withNotice(fiber.Map{"view": v}, "Зображення завантажено", "Зображення успішно додано"))
}

// EditorSave handles POST /api/v1/admin/editor/:id/save. A stale draft is
// rejected with 409 unless force is set.
func (h *Handlers) EditorSave(c *fiber.Ctx) error {
	var req saveRequest
	if len(c.Body()) > 0 {
		if err := middleware.Bind(c, &req); err != nil {
			return err
		}
	}
	a, err := h.Editor.Save(c.UserContext(), c.Params("id"), middleware.VisitorFrom(c).ProfileID, req.Force)
	if err != nil {
		return err
	}
	return c.JSON(withNotice(
		fiber.Map{"article": a, "redirect": "/admin/articles"},
		"Статтю збережено", "Зміни успішно збережено",
	))
}

// EditorCancel handles POST /api/v1/admin/editor/:id/cancel
func (h *Handlers) EditorCancel(c *fiber.Ctx) error {
	if err := h.Editor.Cancel(c.Params("id"), middleware.VisitorFrom(c).ProfileID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"redirect": "/admin/articles",
		"notice":   apperr.Info("Редагування скасовано", "Незбережені зміни видалено"),
	})
}

// EditorRecover handles POST /api/v1/admin/editor/:id/recover
func (h *Handlers) EditorRecover(c *fiber.Ctx) error {
	return h.withSession(c, func(s *editor.Session) (editor.View, error) {
		return s.Recover()
	})
}

// CloseEditor handles DELETE /api/v1/admin/editor/:id. Unsaved changes stay
// in the scratch buffer.
func (h *Handlers) CloseEditor(c *fiber.Ctx) error {
	if err := h.Editor.Close(c.Params("id"), middleware.VisitorFrom(c).ProfileID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UploadImage handles POST /api/v1/admin/images, storing an image without
// an editing session
func (h *Handlers) UploadImage(c *fiber.Ctx) error {
	f, err := formImage(c)
	if err != nil {
		return err
	}
	res, err := h.Uploader.Upload(c.UserContext(), middleware.SessionFrom(c), f)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(withNotice(
		fiber.Map{"image": res},
		"Зображення завантажено", "Зображення успішно завантажено",
	))
}

// withSession runs fn on the path's session and renders the view
func (h *Handlers) withSession(c *fiber.Ctx, fn func(*editor.Session) (editor.View, error)) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	v, err := fn(s)
	if err != nil {
		return err
	}
	return c.JSON(v)
}

func formImage(c *fiber.Ctx) (ingest.File, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return ingest.File{}, apperr.Wrap(apperr.KindValidation, "Оберіть файл зображення", err)
	}
	data, err := readFormFile(fh)
	if err != nil {
		return ingest.File{}, err
	}
	return ingest.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Data:        data,
	}, nil
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}
	return data, nil
}
