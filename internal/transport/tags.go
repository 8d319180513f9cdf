package transport

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pi-kari/animal-share-back/internal/db"
	"github.com/pi-kari/animal-share-back/internal/models"
)

func (s *HTTPServer) TagList(c *fiber.Ctx) error {
	var (
		tags []db.Tag
		err  error
	)
	if category := c.Query("category"); category != "" {
		tags, err = s.taxonomy.ListByCategory(c.UserContext(), category)
	} else {
		tags, err = s.taxonomy.ListAll(c.UserContext())
	}
	if err != nil {
		return err
	}

	return c.JSON(toTagResps(tags))
}

func (s *HTTPServer) TagCreate(c *fiber.Ctx) error {
	req := models.TagReq{}
	if err := s.BindAndValidate(c, &req); err != nil {
		return err
	}

	tag, err := s.taxonomy.GetOrCreate(c.UserContext(), req.Name, req.Category)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(models.TagResp{
		ID:       tag.ID,
		Name:     tag.Name,
		Category: tag.Category,
	})
}

func toTagResps(tags []db.Tag) []models.TagResp {
	resp := make([]models.TagResp, len(tags))
	for i := range tags {
		resp[i] = models.TagResp{
			ID:       tags[i].ID,
			Name:     tags[i].Name,
			Category: tags[i].Category,
		}
	}
	return resp
}
