package handler

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/proctor-manager/backend/internal/assigner"
	"github.com/sysu-ecnc-dev/proctor-manager/backend/internal/config"
	"github.com/sysu-ecnc-dev/proctor-manager/backend/internal/domain"
	"github.com/sysu-ecnc-dev/proctor-manager/backend/internal/repository"
)

type Handler struct {
	validate    *validator.Validate
	config      *config.Config
	repository  *repository.Repository
	translator  ut.Translator
	mailChannel *amqp.Channel
	redisClient *redis.Client
	runner      *assigner.Runner

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, repo *repository.Repository, mailCh *amqp.Channel, rdb *redis.Client) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	runner := assigner.NewRunner(repo, repo, assigner.Options{
		TimeBudget:          time.Duration(cfg.Solver.TimeBudget) * time.Second,
		ExtendedTimeBudget:  time.Duration(cfg.Solver.ExtendedTimeBudget) * time.Second,
		MaxRelaxationRounds: cfg.Solver.MaxRelaxationRounds,
		InitialBatchPercent: cfg.Solver.InitialBatchPercent,
	})

	return &Handler{
		validate:    validate,
		config:      cfg,
		repository:  repo,
		translator:  trans,
		mailChannel: mailCh,
		redisClient: rdb,
		runner:      runner,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	// 认证相关
	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Route("/reset-password", func(r chi.Router) {
			r.Post("/require", h.RequireResetPassword)
			r.Post("/confirm", h.ConfirmResetPassword)
		})
	})

	// 以下 API 必须要在登录后才允许调用
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Route("/my-info", func(r chi.Router) {
			r.Use(h.myInfo)
			r.Get("/", h.GetMyInfo)
			r.Patch("/password", h.UpdateMyPassword)
			r.Route("/update-email", func(r chi.Router) {
				r.Post("/require", h.RequireUpdateEmail)
				r.Post("/confirm", h.ConfirmUpdateEmail)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Post("/", h.CreateUser)
			r.Get("/", h.GetAllUserInfo)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.userInfo)
				r.Get("/", h.GetUserInfo)
				r.With(h.preventOperateInitialAdmin).With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Patch("/", h.UpdateUser)
				r.With(h.preventOperateInitialAdmin).With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Delete("/", h.DeleteUser)
				r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Patch("/password", h.UpdateUserPassword)
			})
		})

		// 监考教师名册独立于登录账户，由教务维护
		r.Route("/teachers", func(r chi.Router) {
			r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Post("/", h.CreateTeacher)
			r.Get("/", h.GetAllTeachers)
			r.Route("/{teacherID}", func(r chi.Router) {
				r.Use(h.teacherRecord)
				r.Get("/", h.GetTeacher)
				r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Patch("/", h.UpdateTeacher)
			})
		})

		r.Route("/grade-priorities", func(r chi.Router) {
			r.Get("/", h.GetGradePriorities)
			r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Put("/", h.UpsertGradePriority)
		})

		r.Route("/exam-sessions", func(r chi.Router) {
			r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Post("/", h.CreateExamSession)
			r.Get("/", h.GetAllExamSessions)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.examSession)
				r.Get("/", h.GetExamSession)
				r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Patch("/", h.UpdateExamSession)
				r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Delete("/", h.DeleteExamSession)

				r.Route("/exams", func(r chi.Router) {
					r.Use(h.RequiredRole([]domain.Role{domain.RoleAdmin}))
					r.Post("/", h.UploadExams)
					r.Delete("/", h.DeleteExams)
				})

				r.Route("/enrollments", func(r chi.Router) {
					r.Get("/", h.GetSessionEnrollments)
					r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Put("/", h.EnrollTeacher)
				})

				r.Route("/unavailabilities", func(r chi.Router) {
					r.Use(h.RequiredRole([]domain.Role{domain.RoleAdmin}))
					r.Get("/", h.GetUnavailabilities)
					r.Post("/", h.SubmitUnavailability)
					r.Delete("/", h.DeleteUnavailability)
				})

				r.Route("/assignments", func(r chi.Router) {
					r.Get("/", h.GetActiveAssignments)
					r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Post("/run", h.RunAssignment)
					r.Get("/result", h.GetAssignmentResult)
					r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Post("/swap", h.SwapAssignments)
				})
			})
		})
	})
}
