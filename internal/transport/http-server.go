package transport

import (
	"context"
	"net"
	"strconv"
	"strings"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/go-playground/validator"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/pi-kari/animal-share-back/internal/config"
	"github.com/pi-kari/animal-share-back/internal/db"
	"github.com/pi-kari/animal-share-back/internal/models"
	"github.com/pi-kari/animal-share-back/internal/oauth"
	"github.com/pi-kari/animal-share-back/internal/service"
)

var Module = fx.Provide(NewHTTPServer)

const (
	localUser  = "user"
	localToken = "token"

	sessionCookie = "session"
	stateCookie   = "oauth_state"
	tokenHeader   = "X-Token"
)

type (
	Deps struct {
		fx.In

		Config    *config.Config
		Logger    *zap.SugaredLogger
		Taxonomy  *service.Taxonomy
		Content   *service.Content
		Favorites *service.Favorites
		Zoning    *service.Zoning
		Sessions  *service.Sessions
		OAuth     *oauth.Client
	}

	HTTPServer struct {
		app       *fiber.App
		cfg       *config.Config
		logger    *zap.SugaredLogger
		validator *validator.Validate
		taxonomy  *service.Taxonomy
		content   *service.Content
		favorites *service.Favorites
		zoning    *service.Zoning
		sessions  *service.Sessions
		oauth     *oauth.Client
	}
)

func NewHTTPServer(lc fx.Lifecycle, deps Deps) *HTTPServer {
	instance := New(deps)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			listen := net.JoinHostPort(deps.Config.Host, deps.Config.Port)
			ln, err := net.Listen("tcp", listen)
			if err != nil {
				return errors.Wrapf(err, "listen on %s", listen)
			}
			deps.Logger.Infow("Starting HTTP server.", "addr", listen)
			go func() {
				if err := instance.app.Listener(ln); err != nil {
					deps.Logger.Errorw("HTTP server stopped.", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			deps.Logger.Info("Stopping HTTP server.")
			return instance.app.ShutdownWithContext(ctx)
		},
	})

	return instance
}

// New builds the fiber app with all routes registered but does not listen.
func New(deps Deps) *HTTPServer {
	instance := &HTTPServer{
		cfg:       deps.Config,
		logger:    deps.Logger,
		validator: validator.New(),
		taxonomy:  deps.Taxonomy,
		content:   deps.Content,
		favorites: deps.Favorites,
		zoning:    deps.Zoning,
		sessions:  deps.Sessions,
		oauth:     deps.OAuth,
	}

	e := fiber.New(fiber.Config{
		AppName:               "animal-share",
		DisableStartupMessage: true,
		ErrorHandler:          instance.ErrorHandler,
	})
	instance.app = e

	e.Use(recover.New())
	e.Use(RequestLogger(deps.Logger))
	e.Use(cors.New(cors.Config{
		AllowOrigins:     deps.Config.FrontendURL,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, " + tokenHeader,
	}))

	if deps.Config.MetricsEnabled {
		prom := fiberprometheus.New("animal-share")
		prom.RegisterAt(e, "/metrics")
		e.Use(prom.Middleware)
	}

	e.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	api := e.Group("/api")

	authG := api.Group("/auth")
	authG.Get("/login", instance.Login)
	authG.Get("/callback", instance.Callback)
	authG.Get("/me", instance.RequireAuth, instance.Me)
	authG.Post("/logout", instance.RequireAuth, instance.Logout)

	api.Get("/tags", instance.TagList)
	api.Post("/tags", instance.RequireAuth, instance.TagCreate)

	api.Get("/posts", instance.OptionalAuth, instance.PostList)
	api.Get("/posts/:id", instance.OptionalAuth, instance.PostGet)
	api.Post("/posts", instance.RequireAuth, instance.PostCreate)
	api.Delete("/posts/:id", instance.RequireAuth, instance.PostDelete)

	api.Post("/favorites", instance.RequireAuth, instance.FavoriteAdd)
	api.Delete("/favorites/:postId", instance.RequireAuth, instance.FavoriteRemove)

	api.Get("/user/favorites", instance.RequireAuth, instance.UserFavorites)
	api.Get("/user/posts", instance.RequireAuth, instance.UserPosts)

	api.Get("/exclude-tags", instance.RequireAuth, instance.ExcludeTagList)
	api.Post("/exclude-tags", instance.RequireAuth, instance.ExcludeTagAdd)
	api.Delete("/exclude-tags/:tagId", instance.RequireAuth, instance.ExcludeTagRemove)

	return instance
}

func (s *HTTPServer) App() *fiber.App {
	return s.app
}

// ErrorHandler turns service errors into {message} responses. Anything not
// recognized is a 500 without details.
func (s *HTTPServer) ErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := "internal server error"

	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		status = fe.Code
		message = fe.Message
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrInvalidCategory),
		errors.Is(err, service.ErrPolicyViolation):
		status = fiber.StatusBadRequest
		message = err.Error()
	case errors.Is(err, service.ErrNotFound):
		status = fiber.StatusNotFound
		message = "not found"
	case errors.Is(err, service.ErrUnauthenticated):
		status = fiber.StatusUnauthorized
		message = "unauthenticated"
	}

	if status >= fiber.StatusInternalServerError {
		s.logger.Errorw("Request failed.", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(models.ErrorResp{Message: message})
}

func (s *HTTPServer) authenticate(c *fiber.Ctx, required bool) error {
	token := c.Get(tokenHeader)
	if token == "" {
		token = c.Cookies(sessionCookie)
	}
	if token == "" {
		if required {
			return service.ErrUnauthenticated
		}
		return c.Next()
	}

	user, err := s.sessions.Resolve(c.UserContext(), token)
	if err != nil {
		if !required && errors.Is(err, service.ErrUnauthenticated) {
			return c.Next()
		}
		return err
	}

	c.Locals(localUser, user)
	c.Locals(localToken, token)
	return c.Next()
}

func (s *HTTPServer) RequireAuth(c *fiber.Ctx) error {
	return s.authenticate(c, true)
}

// OptionalAuth identifies the caller when a valid session is presented and
// otherwise lets the request through anonymously.
func (s *HTTPServer) OptionalAuth(c *fiber.Ctx) error {
	return s.authenticate(c, false)
}

////////

func (s *HTTPServer) BindAndValidate(c *fiber.Ctx, v interface{}) error {
	if err := c.BodyParser(v); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := s.validator.Struct(v); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

func GetUserFromContext(c *fiber.Ctx) (*db.User, error) {
	user, ok := c.Locals(localUser).(*db.User)
	if !ok || user == nil {
		return nil, service.ErrUnauthenticated
	}
	return user, nil
}

// viewerID is the caller's id on optionally authenticated routes.
func viewerID(c *fiber.Ctx) *string {
	user, ok := c.Locals(localUser).(*db.User)
	if !ok || user == nil {
		return nil
	}
	id := user.ID
	return &id
}

func GetAndParseParam(c *fiber.Ctx, name string) (uint64, error) {
	v := c.Params(name)
	if v == "" {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid path param '"+name+"'")
	}
	vv, err := strconv.ParseUint(v, 10, 64)
	if err != nil || vv == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid path param '"+name+"'")
	}
	return vv, nil
}

type Pagination struct {
	Limit  int
	Offset int
}

func parsePagination(c *fiber.Ctx) Pagination {
	limit := c.QueryInt("limit", service.DefaultPageSize)
	if limit <= 0 {
		limit = service.DefaultPageSize
	}
	if limit > service.MaxPageSize {
		limit = service.MaxPageSize
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return Pagination{Limit: limit, Offset: offset}
}

// parseIDList reads a repeatable query parameter; each value may also be a
// comma separated list.
func parseIDList(c *fiber.Ctx, name string) ([]uint64, error) {
	var ids []uint64
	for _, raw := range c.Context().QueryArgs().PeekMulti(name) {
		for _, part := range strings.Split(string(raw), ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseUint(part, 10, 64)
			if err != nil || id == 0 {
				return nil, fiber.NewError(fiber.StatusBadRequest, "invalid query param '"+name+"'")
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
