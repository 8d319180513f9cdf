package transport

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pi-kari/animal-share-back/internal/models"
)

func (s *HTTPServer) FavoriteAdd(c *fiber.Ctx) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := models.FavoriteReq{}
	if err := s.BindAndValidate(c, &req); err != nil {
		return err
	}

	if err := s.favorites.AddFavorite(c.UserContext(), user.ID, req.PostID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *HTTPServer) FavoriteRemove(c *fiber.Ctx) error {
	postID, err := GetAndParseParam(c, "postId")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	if err := s.favorites.RemoveFavorite(c.UserContext(), user.ID, postID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *HTTPServer) UserFavorites(c *fiber.Ctx) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}
	p := parsePagination(c)

	posts, err := s.favorites.ListFavorites(c.UserContext(), user.ID, p.Limit, p.Offset)
	if err != nil {
		return err
	}
	return c.JSON(toPostResps(posts))
}

func (s *HTTPServer) ExcludeTagList(c *fiber.Ctx) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	tags, err := s.zoning.ListExcludeTags(c.UserContext(), user.ID)
	if err != nil {
		return err
	}
	return c.JSON(toTagResps(tags))
}

// ExcludeTagAdd adds a single exclusion or, when tagIds is sent, replaces the
// whole set. Both respond with the resulting set.
func (s *HTTPServer) ExcludeTagAdd(c *fiber.Ctx) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := models.ExcludeTagReq{}
	if err := s.BindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.UserContext()
	switch {
	case req.TagIDs != nil:
		err = s.zoning.SetExcludeTags(ctx, user.ID, req.TagIDs)
	case req.TagID != nil:
		err = s.zoning.AddExcludeTag(ctx, user.ID, *req.TagID)
	default:
		return fiber.NewError(fiber.StatusBadRequest, "tagId or tagIds is required")
	}
	if err != nil {
		return err
	}

	tags, err := s.zoning.ListExcludeTags(ctx, user.ID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(toTagResps(tags))
}

func (s *HTTPServer) ExcludeTagRemove(c *fiber.Ctx) error {
	tagID, err := GetAndParseParam(c, "tagId")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	if err := s.zoning.RemoveExcludeTag(c.UserContext(), user.ID, tagID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
