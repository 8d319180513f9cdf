package transport

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pi-kari/animal-share-back/internal/models"
	"github.com/pi-kari/animal-share-back/internal/service"
)

func (s *HTTPServer) PostList(c *fiber.Ctx) error {
	include, err := parseIDList(c, "tagIds")
	if err != nil {
		return err
	}
	exclude, err := parseIDList(c, "excludeTagIds")
	if err != nil {
		return err
	}
	p := parsePagination(c)

	posts, err := s.content.GetPosts(c.UserContext(), service.FeedQuery{
		Limit:         p.Limit,
		Offset:        p.Offset,
		IncludeTagIDs: include,
		ExcludeTagIDs: exclude,
		ViewerID:      viewerID(c),
	})
	if err != nil {
		return err
	}

	return c.JSON(toPostResps(posts))
}

func (s *HTTPServer) PostGet(c *fiber.Ctx) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}

	post, err := s.content.GetPost(c.UserContext(), id, viewerID(c))
	if err != nil {
		return err
	}

	return c.JSON(toPostResp(post))
}

func (s *HTTPServer) PostCreate(c *fiber.Ctx) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := models.PostReq{}
	if err := s.BindAndValidate(c, &req); err != nil {
		return err
	}

	post, err := s.content.CreatePost(c.UserContext(), user.ID, req.ImageURL, req.Caption, req.TagIDs)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(toPostResp(post))
}

func (s *HTTPServer) PostDelete(c *fiber.Ctx) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	deleted, err := s.content.DeletePost(c.UserContext(), id, user.ID)
	if err != nil {
		return err
	}
	if !deleted {
		return service.ErrNotFound
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *HTTPServer) UserPosts(c *fiber.Ctx) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}
	p := parsePagination(c)

	posts, err := s.content.ListUserPosts(c.UserContext(), user.ID, p.Limit, p.Offset)
	if err != nil {
		return err
	}
	return c.JSON(toPostResps(posts))
}

func toPostResps(posts []service.FeedPost) []models.PostResp {
	resp := make([]models.PostResp, len(posts))
	for i := range posts {
		resp[i] = toPostResp(&posts[i])
	}
	return resp
}

func toPostResp(p *service.FeedPost) models.PostResp {
	tags := make([]models.TagResp, len(p.Tags))
	for i, t := range p.Tags {
		tags[i] = models.TagResp{ID: t.ID, Name: t.Name, Category: t.Category}
	}
	return models.PostResp{
		ID:        p.ID,
		ImageURL:  p.ImageURL,
		Caption:   p.Caption,
		CreatedAt: p.CreatedAt,
		User: models.UserResp{
			ID:          p.User.ID,
			DisplayName: p.User.DisplayName,
			GivenName:   p.User.GivenName,
			FamilyName:  p.User.FamilyName,
			AvatarURL:   p.User.AvatarURL,
		},
		Tags:        tags,
		IsFavorited: p.IsFavorited,
	}
}
