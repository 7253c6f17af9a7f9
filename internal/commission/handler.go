package commission

import (
	"errors"

	"kooperatif-backend/internal/auth"
	"kooperatif-backend/internal/database"
	"kooperatif-backend/internal/respond"

	"github.com/gofiber/fiber/v2"
)

type CreateCommissionRequest struct {
	Name        string `json:"name" validate:"required,max=150"`
	Description string `json:"description" validate:"max=2000"`
	MaxMembers  int    `json:"max_members" validate:"required,gt=0"`
}

type UpdateCommissionRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=150"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	MaxMembers  *int    `json:"max_members" validate:"omitempty,gt=0"`
	IsActive    *bool   `json:"is_active"`
}

type MemberRequest struct {
	UserID uint `json:"user_id" validate:"required"`
}

func service() *Service {
	return NewService(database.DB)
}

func actor(c *fiber.Ctx) (Actor, error) {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return Actor{}, err
	}
	return Actor{UserID: user.ID, Name: user.FullName(), IsAdmin: auth.IsAdmin(c)}, nil
}

// toHTTPError maps service errors onto API statuses.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Komisyon bulunamadı")
	case errors.Is(err, ErrUserNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Kullanıcı bulunamadı")
	case errors.Is(err, ErrMembershipNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Üyelik kaydı bulunamadı")
	case errors.Is(err, ErrForbidden):
		return fiber.NewError(fiber.StatusForbidden, "Bu komisyon için yetkiniz yok")
	case errors.Is(err, ErrDuplicateName):
		return fiber.NewError(fiber.StatusConflict, "Bu isimde bir komisyon zaten var")
	case errors.Is(err, ErrAlreadyMember):
		return fiber.NewError(fiber.StatusConflict, "Bu komisyonda zaten başvurunuz veya üyeliğiniz var")
	case errors.Is(err, ErrCommissionFull):
		return fiber.NewError(fiber.StatusConflict, "Komisyon kapasitesi dolu")
	case errors.Is(err, ErrAlreadyManager):
		return fiber.NewError(fiber.StatusConflict, "Kullanıcı zaten komisyon yöneticisi")
	case errors.Is(err, ErrInactive),
		errors.Is(err, ErrUserInactive),
		errors.Is(err, ErrCapacityTooLow),
		errors.Is(err, ErrNotPending),
		errors.Is(err, ErrNotActiveMember),
		errors.Is(err, ErrLeaderCannotLeave),
		errors.Is(err, ErrNotManager),
		errors.Is(err, ErrRoleChange),
		errors.Is(err, ErrEmptyName):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return err
}

// ----------------------------------------
// KOMİSYON CRUD
// ----------------------------------------

// GET /api/commissions
func ListCommissionsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		includeInactive := auth.IsAdmin(c) && c.QueryBool("include_inactive", false)
		list, err := service().List(c.UserContext(), includeInactive)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Komisyonlar getirilemedi")
		}
		return respond.OK(c, list)
	}
}

// GET /api/commissions/:id
func GetCommissionHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := respond.ParamID(c, "id")
		if err != nil {
			return err
		}
		detail, err := service().Get(c.UserContext(), id)
		if err != nil {
			return toHTTPError(err)
		}
		return respond.OK(c, detail)
	}
}

// POST /api/commissions
func CreateCommissionHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		a, err := actor(c)
		if err != nil {
			return err
		}
		var body CreateCommissionRequest
		if err := respond.Parse(c, &body); err != nil {
			return err
		}

		created, err := service().Create(c.UserContext(), a, CreateInput{
			Name:        body.Name,
			Description: body.Description,
			MaxMembers:  body.MaxMembers,
		})
		if err != nil {
			return toHTTPError(err)
		}
		return respond.Created(c, "Komisyon oluşturuldu", created)
	}
}

// PUT /api/commissions/:id
func UpdateCommissionHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		a, err := actor(c)
		if err != nil {
			return err
		}
		id, err := respond.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body UpdateCommissionRequest
		if err := respond.Parse(c, &body); err != nil {
			return err
		}

		updated, err := service().Update(c.UserContext(), a, id, UpdateInput{
			Name:        body.Name,
			Description: body.Description,
			MaxMembers:  body.MaxMembers,
			IsActive:    body.IsActive,
		})
		if err != nil {
			return toHTTPError(err)
		}
		return respond.MessageWithData(c, "Komisyon güncellendi", updated)
	}
}

// DELETE /api/commissions/:id
func DeactivateCommissionHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		a, err := actor(c)
		if err != nil {
			return err
		}
		id, err := respond.ParamID(c, "id")
		if err != nil {
			return err
		}
		if err := service().Deactivate(c.UserContext(), a, id); err != nil {
			return toHTTPError(err)
		}
		return respond.Message(c, "Komisyon pasif hale getirildi")
	}
}

// ----------------------------------------
// ÜYELİK İŞLEMLERİ
// ----------------------------------------

// GET /api/commissions/my
func MyCommissionsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := service().UserMemberships(c.UserContext(), auth.UserID(c))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Komisyonlarınız getirilemedi")
		}
		return respond.OK(c, list)
	}
}

// POST /api/commissions/:id/apply
func ApplyHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := respond.ParamID(c, "id")
		if err != nil {
			return err
		}
		member, err := service().Apply(c.UserContext(), id, auth.UserID(c))
		if err != nil {
			return toHTTPError(err)
		}
		return respond.Created(c, "Başvurunuz alındı", member)
	}
}

// POST /api/commissions/:id/leave
func LeaveHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := respond.ParamID(c, "id")
		if err != nil {
			return err
		}
		if err := service().Leave(c.UserContext(), id, auth.UserID(c)); err != nil {
			return toHTTPError(err)
		}
		return respond.Message(c, "Komisyondan ayrıldınız")
	}
}

// GET /api/commissions/:id/applications
func PendingApplicationsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		a, err := actor(c)
		if err != nil {
			return err
		}
		id, err := respond.ParamID(c, "id")
		if err != nil {
			return err
		}
		list, err := service().PendingApplications(c.UserContext(), a, id)
		if err != nil {
			return toHTTPError(err)
		}
		return respond.OK(c, list)
	}
}

// memberAction wraps the endpoints of the form /:id/members/:userId/<action>.
func memberAction(message string, fn func(s *Service, c *fiber.Ctx, a Actor, commissionID, userID uint) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		a, err := actor(c)
		if err != nil {
			return err
		}
		commissionID, err := respond.ParamID(c, "id")
		if err != nil {
			return err
		}
		userID, err := respond.ParamID(c, "userId")
		if err != nil {
			return err
		}
		if err := fn(service(), c, a, commissionID, userID); err != nil {
			return toHTTPError(err)
		}
		return respond.Message(c, message)
	}
}

// POST /api/commissions/:id/members/:userId/approve
func ApproveHandler() fiber.Handler {
	return memberAction("Başvuru onaylandı", func(s *Service, c *fiber.Ctx, a Actor, cid, uid uint) error {
		_, err := s.Approve(c.UserContext(), a, cid, uid)
		return err
	})
}

// POST /api/commissions/:id/members/:userId/reject
func RejectHandler() fiber.Handler {
	return memberAction("Başvuru reddedildi", func(s *Service, c *fiber.Ctx, a Actor, cid, uid uint) error {
		return s.Reject(c.UserContext(), a, cid, uid)
	})
}

// DELETE /api/commissions/:id/members/:userId
func RemoveMemberHandler() fiber.Handler {
	return memberAction("Üye komisyondan çıkarıldı", func(s *Service, c *fiber.Ctx, a Actor, cid, uid uint) error {
		return s.Remove(c.UserContext(), a, cid, uid)
	})
}

// POST /api/commissions/:id/members/:userId/promote
func PromoteHandler() fiber.Handler {
	return memberAction("Üye komisyon yöneticisi yapıldı", func(s *Service, c *fiber.Ctx, a Actor, cid, uid uint) error {
		return s.Promote(c.UserContext(), a, cid, uid)
	})
}

// POST /api/commissions/:id/members/:userId/demote
func DemoteHandler() fiber.Handler {
	return memberAction("Yönetici görevden alındı", func(s *Service, c *fiber.Ctx, a Actor, cid, uid uint) error {
		return s.Demote(c.UserContext(), a, cid, uid)
	})
}

// POST /api/commissions/:id/members
func AddMemberHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		a, err := actor(c)
		if err != nil {
			return err
		}
		id, err := respond.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body MemberRequest
		if err := respond.Parse(c, &body); err != nil {
			return err
		}
		member, err := service().AddMember(c.UserContext(), a, id, body.UserID)
		if err != nil {
			return toHTTPError(err)
		}
		return respond.Created(c, "Üye komisyona eklendi", member)
	}
}

// Register mounts the commission routes on a group already behind JWTMiddleware.
func Register(r fiber.Router) {
	g := r.Group("/commissions")
	g.Get("/", ListCommissionsHandler())
	g.Get("/my", MyCommissionsHandler())
	g.Get("/:id", GetCommissionHandler())
	g.Post("/", auth.RequireAdmin(), CreateCommissionHandler())
	g.Put("/:id", auth.RequireAdmin(), UpdateCommissionHandler())
	g.Delete("/:id", auth.RequireAdmin(), DeactivateCommissionHandler())

	g.Post("/:id/apply", ApplyHandler())
	g.Post("/:id/leave", LeaveHandler())
	g.Get("/:id/applications", PendingApplicationsHandler())
	g.Post("/:id/members", auth.RequireAdmin(), AddMemberHandler())
	g.Post("/:id/members/:userId/approve", ApproveHandler())
	g.Post("/:id/members/:userId/reject", RejectHandler())
	g.Delete("/:id/members/:userId", RemoveMemberHandler())
	g.Post("/:id/members/:userId/promote", auth.RequireAdmin(), PromoteHandler())
	g.Post("/:id/members/:userId/demote", auth.RequireAdmin(), DemoteHandler())
}
