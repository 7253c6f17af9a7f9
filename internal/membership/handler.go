package membership

import (
	"errors"
	"time"

	"kooperatif-backend/internal/auth"
	"kooperatif-backend/internal/database"
	"kooperatif-backend/internal/models"
	"kooperatif-backend/internal/respond"

	"github.com/gofiber/fiber/v2"
)

type PlanRequest struct {
	Name         string  `json:"name" validate:"required,max=150"`
	Description  string  `json:"description" validate:"max=255"`
	Amount       float64 `json:"amount" validate:"required,gt=0"`
	PeriodMonths int     `json:"period_months" validate:"required,min=1,max=120"`
	IsActive     *bool   `json:"is_active"`
}

type UpdatePlanRequest struct {
	Name         *string  `json:"name" validate:"omitempty,min=1,max=150"`
	Description  *string  `json:"description" validate:"omitempty,max=255"`
	Amount       *float64 `json:"amount" validate:"omitempty,gt=0"`
	PeriodMonths *int     `json:"period_months" validate:"omitempty,min=1,max=120"`
	IsActive     *bool    `json:"is_active"`
}

type CreateFeeRequest struct {
	UserID      uint   `json:"user_id" validate:"required"`
	PlanID      uint   `json:"plan_id" validate:"required"`
	DueDate     string `json:"due_date" validate:"required"` // YYYY-MM-DD
	PaymentType string `json:"payment_type" validate:"required,oneof=installments full_payment"`
	Notes       string `json:"notes" validate:"max=200"`
}

type BulkFeeRequest struct {
	UserIDs     []uint `json:"user_ids" validate:"required,min=1,dive,required"`
	PlanID      uint   `json:"plan_id" validate:"required"`
	DueDate     string `json:"due_date" validate:"required"`
	PaymentType string `json:"payment_type" validate:"required,oneof=installments full_payment"`
	Notes       string `json:"notes" validate:"max=200"`
}

type UpdateFeeRequest struct {
	Amount  *float64 `json:"amount" validate:"omitempty,gt=0"`
	DueDate *string  `json:"due_date"`
	LateFee *float64 `json:"late_fee" validate:"omitempty,gte=0"`
	Notes   *string  `json:"notes" validate:"omitempty,max=255"`
}

type LateFeeRequest struct {
	LateFee float64 `json:"late_fee" validate:"gte=0"`
}

type PaymentRequest struct {
	FeeID       uint    `json:"fee_id" validate:"required"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Method      string  `json:"payment_method" validate:"omitempty,oneof=cash bank_transfer credit_card other"`
	PaymentDate string  `json:"payment_date"`
	Notes       string  `json:"notes" validate:"max=255"`
}

type BulkPaymentRequest struct {
	FeeIDs []uint `json:"fee_ids" validate:"required,min=1,dive,required"`
	Method string `json:"payment_method" validate:"omitempty,oneof=cash bank_transfer credit_card other"`
	Notes  string `json:"notes" validate:"max=255"`
}

type RuleRequest struct {
	PlanID     uint  `json:"plan_id" validate:"required"`
	DayOfMonth int   `json:"day_of_month" validate:"required,min=1,max=28"`
	IsActive   *bool `json:"is_active"`
}

type UpdateRuleRequest struct {
	PlanID     *uint `json:"plan_id" validate:"omitempty,min=1"`
	DayOfMonth *int  `json:"day_of_month" validate:"omitempty,min=1,max=28"`
	IsActive   *bool `json:"is_active"`
}

func service() *Service {
	return NewService(database.DB)
}

func actor(c *fiber.Ctx) (Actor, error) {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return Actor{}, err
	}
	return Actor{UserID: user.ID, Name: user.FullName()}, nil
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrPlanNotFound),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrFeeNotFound),
		errors.Is(err, ErrBatchNotFound),
		errors.Is(err, ErrRuleNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrPlanInUse),
		errors.Is(err, ErrDuplicatePlan),
		errors.Is(err, ErrBatchHasPaid),
		errors.Is(err, ErrAlreadyRanFor):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrFeeAlreadyPaid),
		errors.Is(err, ErrPlanInactive),
		errors.Is(err, ErrUserInactive),
		errors.Is(err, ErrNoUsers),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrEmptyPlanName),
		errors.Is(err, ErrInvalidPayment),
		errors.Is(err, ErrInvalidDay),
		errors.Is(err, ErrRuleInactive):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return err
}

func optionalDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := respond.ParseDate(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ----------------------------------------
// PLANLAR
// ----------------------------------------

// GET /api/membership/plans
func ListPlansHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		onlyActive := !auth.IsAdmin(c) || c.QueryBool("active", false)
		plans, err := service().ListPlans(c.UserContext(), onlyActive)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Planlar getirilemedi")
		}
		return respond.OK(c, plans)
	}
}

// GET /api/membership/plans/:id
func GetPlanHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := respond.ParamID(c, "id")
		if err != nil {
			return err
		}
		plan, err := service().GetPlan(c.UserContext(), id)
		if err != nil {
			return toHTTPError(err)
		}
		return respond.OK(c, plan)
	}
}

// POST /api/membership/plans
func CreatePlanHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		a, err := actor(c)
		if err != nil {
			return err
		}
		var body PlanRequest
		if err := respond.Parse(c, &body); err != nil {
			return err
		}
		active := true
		if body.IsActive != nil {
			active = *body.IsActive
		}
		plan, err := service().CreatePlan(c.UserContext(), a, PlanInput{
			Name:         body.Name,
			Description:  body.Description,
			Amount:       body.Amount,
			PeriodMonths: body.PeriodMonths,
			IsActive:     active,
		})
		if err != nil {
			return toHTTPError(err)
		}
		return respond.Created(c, "Plan oluşturuldu", plan)
	}
}

// PUT /api/membership/plans/:id
func UpdatePlanHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		a, err := actor(c)
		if err != nil {
			return err
		}
		id, err := respond.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body UpdatePlanRequest
		if err := respond.Parse(c, &body); err != nil {
			return err
		}
		plan, err := service().UpdatePlan(c.UserContext(), a, id, PlanUpdate{
			Name:         body.Name,
			Description:  body.Description,
			Amount:       body.Amount,
			PeriodMonths: body.PeriodMonths,
			IsActive:     body.IsActive,
		})
		if err != nil {
			return toHTTPError(err)
		}
		return respond.MessageWithData(c, "Plan güncellendi", plan)
	}
}

// DELETE /api/membership/plans/:id
func DeletePlanHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		a, err := actor(c)
		if err != nil {
			return err
		}
		id, err := respond.ParamID(c, "id")
		if err != nil {
			return err
		}
		if err := service().DeletePlan(c.UserContext(), a, id); err != nil {
			return toHTTPError(err)
		}
		return respond.Message(c, "Plan silindi")
	}
}

// ----------------------------------------
// AİDATLAR
// ----------------------------------------

// GET /api/membership/fees
func ListFeesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		f, err := FeeFilterFromQuery(c)
		if err != nil {
			return err
		}
		fees, total, err := service().ListFees(c.UserContext(), f, respond.Paginate(c))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Aidatlar getirilemedi")
		}
		return respond.OK(c, respond.NewPage(c, fees, total))
	}
}

// FeeFilterFromQuery reads user_id, plan_id, batch_id, status, overdue, from and to.
func FeeFilterFromQuery(c *fiber.Ctx) (FeeFilter, error) {
	var f FeeFilter
	var err error
	if f.UserID, err = respond.QueryID(c, "user_id"); err != nil {
		return f, err
	}
	if f.PlanID, err = respond.QueryID(c, "plan_id"); err != nil {
		return f, err
	}
	if f.BatchID, err = respond.QueryID(c, "batch_id"); err != nil {
		return f, err
	}
	switch status := models.FeeStatus(c.Query("status")); status {
	case "", models.FeePending, models.FeePaid:
		f.Status = status
	default:
		return f, fiber.NewError(fiber.StatusBadRequest, "status 'pending' veya 'paid' olmalı")
	}
	f.Overdue = c.QueryBool("overdue", false)

	from, to := c.Query("from"), c.Query("to")
	if f.From, err = optionalDate(&from); err != nil {
		return f, err
	}
	if f.To, err = optionalDate(&to); err != nil {
		return f, err
	}
	return f, nil
}

// GET /api/membership/fees/overdue
func OverdueFeesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		fees, err := service().OverdueFees(c.UserContext(), time.Now())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Gecikmiş aidatlar getirilemedi")
		}
		return respond.OK(c, fees)
	}
}

// GET /api/membership/fees/:id
func GetFeeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := respond.ParamID(c, "id")
		if err != nil {
			return err
		}
		fee, err := service().GetFee(c.UserContext(), id)
		if err != nil {
			return toHTTPError(err)
		}
		return respond.OK(c, fee)
	}
}

// POST /api/membership/fees
func CreateFeeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		a, err := actor(c)
		if err != nil {
			return err
		}
		var body CreateFeeRequest
		if err := respond.Parse(c, &body); err != nil {
			return err
		}
		due, err := respond.ParseDate(body.DueDate)
		if err != nil {
			return err
		}

		batch, err := service().CreateFee(c.UserContext(), a, body.UserID, FeeRequest{
			PlanID:      body.PlanID,
			DueDate:     due,
			PaymentType: models.PaymentType(body.PaymentType),
			Notes:       body.Notes,
		})
		if err != nil {
			return toHTTPError(err)
		}
		return respond.Created(c, "Aidat oluşturuldu", batch)
	}
}

// POST /api/membership/fees/bulk
func CreateBulkFeesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		a, err := actor(c)
		if err != nil {
			return err
		}
		var body BulkFeeRequest
		if err := respond.Parse(c, &body); err != nil {
			return err
		}
		due, err := respond.ParseDate(body.DueDate)
		if err != nil {
			return err
		}

		batches, err := service().CreateBulkFees(c.UserContext(), a, body.UserIDs, FeeRequest{
			PlanID:      body.PlanID,
			DueDate:     due,
			PaymentType: models.PaymentType(body.PaymentType),
			Notes:       body.Notes,
		})
		if err != nil {
			return toHTTPError(err)
		}
		return respond.Created(c, "Toplu aidat oluşturuldu", fiber.Map{
			"user_count": len(batches),
			"batches":    batches,
		})
	}
}

// PUT /api/membership/fees/:id
func UpdateFeeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		a, err := actor(c)
		if err != nil {
			return err
		}
		id, err := respond.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body UpdateFeeRequest
		if err := respond.Parse(c, &body); err != nil {
			return err
		}
		due, err := optionalDate(body.DueDate)
		if err != nil {
			return err
		}

		fee, err := service().UpdateFee(c.UserContext(), a, id, FeeUpdate{
			Amount:  body.Amount,
			DueDate: due,
			LateFee: body.LateFee,
			Notes:   body.Notes,
		})
		if err != nil {
			return toHTTPError(err)
		}
		return respond.MessageWithData(c, "Aidat güncellendi", fee)
	}
}

// POST /api/membership/fees/:id/late-fee
func ApplyLateFeeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		a, err := actor(c)
		if err != nil {
			return err
		}
		id, err := respond.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body LateFeeRequest
		if err := respond.Parse(c, &body); err != nil {
			return err
		}
		fee, err := service().ApplyLateFee(c.UserContext(), a, id, body.LateFee)
		if err != nil {
			return toHTTPError(err)
		}
		return respond.MessageWithData(c, "Gecikme bedeli uygulandı", fee)
	}
}

// DELETE /api/membership/fees/:id
func DeleteFeeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		a, err := actor(c)
		if err != nil {
			return err
		}
		id, err := respond.ParamID(c, "id")
		if err != nil {
			return err
		}
		if err := service().DeleteFee(c.UserContext(), a, id); err != nil {
			return toHTTPError(err)
		}
		return respond.Message(c, "Aidat silindi")
	}
}

// GET /api/membership/batches/:id
func GetBatchHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := respond.ParamID(c, "id")
		if err != nil {
			return err
		}
		batch, err := service().GetBatch(c.UserContext(), id)
		if err != nil {
			return toHTTPError(err)
		}
		return respond.OK(c, batch)
	}
}

// DELETE /api/membership/batches/:id
func DeleteBatchHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		a, err := actor(c)
		if err != nil {
			return err
		}
		id, err := respond.ParamID(c, "id")
		if err != nil {
			return err
		}
		if err := service().DeleteBatch(c.UserContext(), a, id); err != nil {
			return toHTTPError(err)
		}
		return respond.Message(c, "Aidat grubu silindi")
	}
}

// ----------------------------------------
// ÖDEMELER
// ----------------------------------------

// POST /api/membership/payments
func RecordPaymentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		a, err := actor(c)
		if err != nil {
			return err
		}
		var body PaymentRequest
		if err := respond.Parse(c, &body); err != nil {
			return err
		}
		paidAt, err := optionalDate(&body.PaymentDate)
		if err != nil {
			return err
		}

		payment, err := service().RecordPayment(c.UserContext(), a, PaymentInput{
			FeeID:       body.FeeID,
			Amount:      body.Amount,
			Method:      models.PaymentMethod(body.Method),
			PaymentDate: paidAt,
			Notes:       body.Notes,
		})
		if err != nil {
			return toHTTPError(err)
		}
		return respond.Created(c, "Ödeme kaydedildi", payment)
	}
}

// POST /api/membership/payments/bulk
func RecordBulkPaymentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		a, err := actor(c)
		if err != nil {
			return err
		}
		var body BulkPaymentRequest
		if err := respond.Parse(c, &body); err != nil {
			return err
		}
		payments, err := service().RecordBulkPayment(c.UserContext(), a, body.FeeIDs,
			models.PaymentMethod(body.Method), body.Notes)
		if err != nil {
			return toHTTPError(err)
		}

		total := 0.0
		for _, p := range payments {
			total += p.Amount
		}
		return respond.Created(c, "Toplu ödeme kaydedildi", fiber.Map{
			"count":        len(payments),
			"total_amount": roundMoney(total),
			"payments":     payments,
		})
	}
}

// GET /api/membership/payments
func ListPaymentsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		f, err := PaymentFilterFromQuery(c)
		if err != nil {
			return err
		}
		payments, total, err := service().ListPayments(c.UserContext(), f, respond.Paginate(c))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Ödemeler getirilemedi")
		}
		return respond.OK(c, respond.NewPage(c, payments, total))
	}
}

// PaymentFilterFromQuery reads user_id, fee_id, payment_method, from and to.
func PaymentFilterFromQuery(c *fiber.Ctx) (PaymentFilter, error) {
	var f PaymentFilter
	var err error
	if f.UserID, err = respond.QueryID(c, "user_id"); err != nil {
		return f, err
	}
	if f.FeeID, err = respond.QueryID(c, "fee_id"); err != nil {
		return f, err
	}
	f.Method = models.PaymentMethod(c.Query("payment_method"))
	from, to := c.Query("from"), c.Query("to")
	if f.From, err = optionalDate(&from); err != nil {
		return f, err
	}
	if f.To, err = optionalDate(&to); err != nil {
		return f, err
	}
	return f, nil
}

// GET /api/membership/users/:userId/summary
func UserSummaryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := respond.ParamID(c, "userId")
		if err != nil {
			return err
		}
		sum, err := service().UserSummary(c.UserContext(), userID, time.Now())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Özet hesaplanamadı")
		}
		return respond.OK(c, sum)
	}
}

// ----------------------------------------
// OTOMATİK AİDATLAR
// ----------------------------------------

// GET /api/membership/auto-fees
func ListRulesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rules, err := service().ListRules(c.UserContext())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Otomatik aidat kuralları getirilemedi")
		}
		return respond.OK(c, rules)
	}
}

// POST /api/membership/auto-fees
func CreateRuleHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RuleRequest
		if err := respond.Parse(c, &body); err != nil {
			return err
		}
		active := true
		if body.IsActive != nil {
			active = *body.IsActive
		}
		rule, err := service().CreateRule(c.UserContext(), RuleInput{
			PlanID:     body.PlanID,
			DayOfMonth: body.DayOfMonth,
			IsActive:   active,
		})
		if err != nil {
			return toHTTPError(err)
		}
		return respond.Created(c, "Otomatik aidat kuralı oluşturuldu", rule)
	}
}

// PUT /api/membership/auto-fees/:id
func UpdateRuleHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := respond.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body UpdateRuleRequest
		if err := respond.Parse(c, &body); err != nil {
			return err
		}
		rule, err := service().UpdateRule(c.UserContext(), id, RuleUpdate{
			PlanID:     body.PlanID,
			DayOfMonth: body.DayOfMonth,
			IsActive:   body.IsActive,
		})
		if err != nil {
			return toHTTPError(err)
		}
		return respond.MessageWithData(c, "Otomatik aidat kuralı güncellendi", rule)
	}
}

// DELETE /api/membership/auto-fees/:id
func DeleteRuleHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := respond.ParamID(c, "id")
		if err != nil {
			return err
		}
		if err := service().DeleteRule(c.UserContext(), id); err != nil {
			return toHTTPError(err)
		}
		return respond.Message(c, "Otomatik aidat kuralı silindi")
	}
}

// POST /api/membership/auto-fees/:id/run
func RunRuleHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		a, err := actor(c)
		if err != nil {
			return err
		}
		id, err := respond.ParamID(c, "id")
		if err != nil {
			return err
		}
		n, err := service().RunRule(c.UserContext(), a, id, time.Now())
		if err != nil {
			return toHTTPError(err)
		}
		return respond.MessageWithData(c, "Otomatik aidat çalıştırıldı", fiber.Map{"created": n})
	}
}

// Register mounts the membership routes on a group already behind JWTMiddleware.
func Register(r fiber.Router) {
	g := r.Group("/membership")
	g.Get("/plans", ListPlansHandler())
	g.Get("/plans/:id", GetPlanHandler())

	admin := g.Group("", auth.RequireAdmin())
	admin.Post("/plans", CreatePlanHandler())
	admin.Put("/plans/:id", UpdatePlanHandler())
	admin.Delete("/plans/:id", DeletePlanHandler())

	admin.Get("/fees", ListFeesHandler())
	admin.Get("/fees/overdue", OverdueFeesHandler())
	admin.Post("/fees", CreateFeeHandler())
	admin.Post("/fees/bulk", CreateBulkFeesHandler())
	admin.Get("/fees/:id", GetFeeHandler())
	admin.Put("/fees/:id", UpdateFeeHandler())
	admin.Delete("/fees/:id", DeleteFeeHandler())
	admin.Post("/fees/:id/late-fee", ApplyLateFeeHandler())
	admin.Get("/batches/:id", GetBatchHandler())
	admin.Delete("/batches/:id", DeleteBatchHandler())

	admin.Get("/payments", ListPaymentsHandler())
	admin.Post("/payments", RecordPaymentHandler())
	admin.Post("/payments/bulk", RecordBulkPaymentHandler())
	admin.Get("/users/:userId/summary", UserSummaryHandler())

	admin.Get("/auto-fees", ListRulesHandler())
	admin.Post("/auto-fees", CreateRuleHandler())
	admin.Put("/auto-fees/:id", UpdateRuleHandler())
	admin.Delete("/auto-fees/:id", DeleteRuleHandler())
	admin.Post("/auto-fees/:id/run", RunRuleHandler())
}
