package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"finrecord/api/internal/config"
	"finrecord/api/internal/middleware"
	"finrecord/api/internal/models"
	"finrecord/api/internal/queue"
	"finrecord/api/internal/repository"
	"finrecord/api/internal/security"
	"finrecord/api/internal/service"
	"finrecord/api/internal/session"
)

type HandlerSet struct {
	log      zerolog.Logger
	cfg      *config.AppConfig
	cookies  session.CookiePolicy
	db       *pgxpool.Pool
	cache    *redis.Client
	accounts *repository.AccountRepository
	auth     *service.AuthService
	users    *service.UserService
	licenses *service.LicenseService
	records  *service.RecordService
	admins   service.AdminList
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, cache *redis.Client, cfg *config.AppConfig) HandlerSet {
	accountRepo := repository.NewAccountRepository(db)
	licenseRepo := repository.NewLicenseRepository(db)
	recordRepo := repository.NewRecordRepository(db)

	tokens := security.NewTokenAuthority(cfg.Auth.TokenSecret, cfg.Auth.AccessTokenTTL)
	producer := queue.NewProducer(cache, cfg.Redis.Stream)

	admins := make(service.AdminList, 0, len(cfg.Security.AdminEmails))
	for _, email := range cfg.Security.AdminEmails {
		admins = append(admins, strings.ToLower(strings.TrimSpace(email)))
	}

	return HandlerSet{
		log:      log,
		cfg:      cfg,
		cookies:  session.NewCookiePolicy(cfg.Environment, cfg.Auth.CookieMaxAge),
		db:       db,
		cache:    cache,
		accounts: accountRepo,
		auth:     service.NewAuthService(accountRepo, tokens, log, cfg.Auth.BcryptCost, cfg.Environment, cfg.Security.SingleAccountPerIP),
		users:    service.NewUserService(accountRepo, licenseRepo, tokens, admins, log),
		licenses: service.NewLicenseService(accountRepo, licenseRepo, producer, log),
		records:  service.NewRecordService(accountRepo, recordRepo, log),
		admins:   admins,
	}
}

// Register mounts every route. Static paths are registered before their
// parameterized siblings so they win the first-match routing.
func (h HandlerSet) Register(app *fiber.App) {
	app.Get("/healthz", h.Health)

	limiter := middleware.RateLimit(h.cache, h.log, "auth", h.cfg.Security.RateLimitWindow, h.cfg.Security.RateLimitMax)
	authn := middleware.Authenticate(h.accounts)
	owner := middleware.RequireOwner(h.admins)
	admin := middleware.RequireAdmin(h.admins)

	auth := app.Group("/auth")
	auth.Post("/register", limiter, h.RegisterAccount)
	auth.Post("/login", limiter, h.Login)
	auth.Post("/logout", h.Logout)
	auth.Post("/token", h.RefreshToken)
	auth.Post("/session", h.BrowserSession)
	auth.Post("/:id/password-reset", authn, owner, h.ResetPassword)

	users := app.Group("/users")
	users.Post("/session", h.TokenSession)
	users.Get("/", authn, admin, h.ListUsers)
	users.Post("/", authn, admin, h.ListUsers)
	users.Put("/", authn, admin, h.BulkUpdateUsers)
	users.Post("/:id", authn, owner, h.GetUser)
	users.Put("/:id", authn, owner, h.UpdateUser)
	users.Delete("/:id", authn, owner, h.DeleteUser)

	licenses := app.Group("/:userId/l-records")
	licenses.Post("/", authn, admin, h.CreateLicense)
	licenses.Get("/", authn, h.ListLicenses)
	licenses.Get("/:id", authn, owner, h.GetLicense)
	licenses.Patch("/:id", authn, owner, h.UpdateLicense)
	licenses.Delete("/:id", authn, owner, h.DeleteLicense)

	records := app.Group("/:userId/records")
	records.Get("/", authn, owner, h.ListRecords)
	records.Post("/", authn, owner, h.CreateRecord)
	records.Patch("/:id", authn, owner, h.UpdateRecord)
	records.Delete("/:id", authn, owner, h.DeleteRecord)
}

// pageFromQuery reads the shared list pagination contract.
func pageFromQuery(c *fiber.Ctx) models.Page {
	return models.Page{
		Start: c.QueryInt("_start", 0),
		End:   c.QueryInt("_end", 10),
		Sort:  c.Query("_sort"),
		Order: c.Query("_order"),
	}
}

// exposeTotal sets the unpaged count header used by list consumers.
func exposeTotal(c *fiber.Ctx, total int) {
	c.Set("x-total-count", strconv.Itoa(total))
	c.Set("Access-Control-Expose-Headers", "x-total-count")
}
