package admin

import (
	"errors"
	"fmt"
	"strings"

	"kooperatif-backend/internal/audit"
	"kooperatif-backend/internal/auth"
	"kooperatif-backend/internal/database"
	"kooperatif-backend/internal/models"
	"kooperatif-backend/internal/respond"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CreateUserRequest struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"max=30"`
	Address   string `json:"address" validate:"max=255"`
	MemberNo  string `json:"member_no" validate:"max=30"`
	Password  string `json:"password" validate:"required,min=6"`
	Role      string `json:"role" validate:"omitempty,oneof=admin member"`
}

type UpdateUserRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,min=1,max=100"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Phone     *string `json:"phone" validate:"omitempty,max=30"`
	Address   *string `json:"address" validate:"omitempty,max=255"`
	MemberNo  *string `json:"member_no" validate:"omitempty,max=30"`
	Role      *string `json:"role" validate:"omitempty,oneof=admin member"`
}

type ResetPasswordRequest struct {
	Password string `json:"password" validate:"omitempty,min=6"`
}

func findUser(c *fiber.Ctx) (*models.User, error) {
	id, err := respond.ParamID(c, "id")
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := database.DB.WithContext(c.UserContext()).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "Kullanıcı bulunamadı")
		}
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Kullanıcı getirilemedi")
	}
	return &user, nil
}

func auditActor(c *fiber.Ctx) (uint, string) {
	if u, err := auth.CurrentUser(c); err == nil {
		return u.ID, u.FullName()
	}
	return auth.UserID(c), ""
}

// ----------------------------------------
// KULLANICI CRUD
// ----------------------------------------

// GET /api/admin/users
func ListUsersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.WithContext(c.UserContext()).Model(&models.User{})

		if search := strings.TrimSpace(c.Query("search")); search != "" {
			like := "%" + strings.ToLower(search) + "%"
			q = q.Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(email) LIKE ? OR member_no LIKE ?",
				like, like, like, like)
		}
		if role := c.Query("role"); role != "" {
			q = q.Where("role = ?", role)
		}
		if active := c.Query("is_active"); active != "" {
			q = q.Where("is_active = ?", active == "true")
		}

		var total int64
		if err := q.Count(&total).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kullanıcılar listelenemedi")
		}

		var users []models.User
		if err := q.Scopes(respond.Paginate(c)).
			Order("first_name ASC, last_name ASC, id ASC").
			Find(&users).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kullanıcılar listelenemedi")
		}

		return respond.OK(c, respond.NewPage(c, users, total))
	}
}

// GET /api/admin/users/:id
func GetUserHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := findUser(c)
		if err != nil {
			return err
		}
		return respond.OK(c, user)
	}
}

// POST /api/admin/users
func CreateUserHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateUserRequest
		if err := respond.Parse(c, &body); err != nil {
			return err
		}

		user, err := auth.BuildMember(auth.NewMemberInput{
			FirstName: body.FirstName,
			LastName:  body.LastName,
			Email:     body.Email,
			Phone:     body.Phone,
			Address:   body.Address,
			Password:  body.Password,
		})
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		user.MemberNo = strings.TrimSpace(body.MemberNo)
		if body.Role == string(models.RoleAdmin) {
			user.Role = models.RoleAdmin
		}

		var count int64
		database.DB.WithContext(c.UserContext()).Model(&models.User{}).Where("email = ?", user.Email).Count(&count)
		if count > 0 {
			return fiber.NewError(fiber.StatusConflict, "Bu e-posta adresi zaten kayıtlı")
		}

		if err := database.DB.WithContext(c.UserContext()).Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fiber.NewError(fiber.StatusConflict, "Bu e-posta adresi zaten kayıtlı")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Kullanıcı oluşturulamadı")
		}

		actorID, actorName := auditActor(c)
		audit.Record(c.UserContext(), database.DB, audit.LogOptions{
			UserID:      actorID,
			UserName:    actorName,
			EntityType:  "user",
			EntityID:    user.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Kullanıcı oluşturuldu: %s", user.Email),
			After:       user,
		})

		return respond.Created(c, "Kullanıcı oluşturuldu", user)
	}
}

// PUT /api/admin/users/:id
func UpdateUserHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := findUser(c)
		if err != nil {
			return err
		}

		var body UpdateUserRequest
		if err := respond.Parse(c, &body); err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if body.FirstName != nil {
			updates["first_name"] = strings.TrimSpace(*body.FirstName)
		}
		if body.LastName != nil {
			updates["last_name"] = strings.TrimSpace(*body.LastName)
		}
		if body.Email != nil {
			email := auth.NormalizeEmail(*body.Email)
			var count int64
			database.DB.WithContext(c.UserContext()).Model(&models.User{}).
				Where("email = ? AND id <> ?", email, user.ID).Count(&count)
			if count > 0 {
				return fiber.NewError(fiber.StatusConflict, "Bu e-posta adresi zaten kayıtlı")
			}
			updates["email"] = email
		}
		if body.Phone != nil {
			updates["phone"] = strings.TrimSpace(*body.Phone)
		}
		if body.Address != nil {
			updates["address"] = strings.TrimSpace(*body.Address)
		}
		if body.MemberNo != nil {
			updates["member_no"] = strings.TrimSpace(*body.MemberNo)
		}
		if body.Role != nil {
			if user.ID == auth.UserID(c) && *body.Role != string(models.RoleAdmin) {
				return fiber.NewError(fiber.StatusBadRequest, "Kendi yönetici yetkinizi kaldıramazsınız")
			}
			updates["role"] = *body.Role
		}
		if len(updates) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Güncellenecek alan yok")
		}

		before := *user
		if err := database.DB.WithContext(c.UserContext()).Model(user).Updates(updates).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fiber.NewError(fiber.StatusConflict, "Bu e-posta adresi zaten kayıtlı")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Kullanıcı güncellenemedi")
		}

		actorID, actorName := auditActor(c)
		audit.Record(c.UserContext(), database.DB, audit.LogOptions{
			UserID:      actorID,
			UserName:    actorName,
			EntityType:  "user",
			EntityID:    user.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Kullanıcı güncellendi: %s", user.Email),
			Before:      before,
			After:       user,
		})

		return respond.MessageWithData(c, "Kullanıcı güncellendi", user)
	}
}

// PATCH /api/admin/users/:id/toggle-active
func ToggleUserActiveHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := findUser(c)
		if err != nil {
			return err
		}
		if user.ID == auth.UserID(c) {
			return fiber.NewError(fiber.StatusBadRequest, "Kendi hesabınızı pasif hale getiremezsiniz")
		}

		if err := database.DB.WithContext(c.UserContext()).Model(user).Update("is_active", !user.IsActive).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kullanıcı durumu güncellenemedi")
		}

		msg := "Kullanıcı pasif hale getirildi"
		if user.IsActive {
			msg = "Kullanıcı aktif hale getirildi"
		}
		return respond.MessageWithData(c, msg, user)
	}
}

// POST /api/admin/users/:id/reset-password
// Şifre verilmezse rastgele bir şifre üretilir ve yanıtta döner.
func ResetPasswordHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := findUser(c)
		if err != nil {
			return err
		}

		var body ResetPasswordRequest
		if len(c.Body()) > 0 {
			if err := respond.Parse(c, &body); err != nil {
				return err
			}
		}

		password := body.Password
		generated := password == ""
		if generated {
			if password, err = auth.RandomPassword(10); err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "Şifre üretilemedi")
			}
		}

		hash, err := auth.HashPassword(password)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Şifre hashlenemedi")
		}
		if err := database.DB.WithContext(c.UserContext()).Model(user).Update("password_hash", hash).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Şifre güncellenemedi")
		}

		data := fiber.Map{"user_id": user.ID}
		if generated {
			data["password"] = password
		}
		return respond.MessageWithData(c, "Şifre sıfırlandı", data)
	}
}

// DELETE /api/admin/users/:id
// Kullanıcı ile birlikte ödemeleri, aidatları ve komisyon üyelikleri de silinir.
func DeleteUserHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := findUser(c)
		if err != nil {
			return err
		}
		if user.ID == auth.UserID(c) {
			return fiber.NewError(fiber.StatusBadRequest, "Kendi hesabınızı silemezsiniz")
		}

		actorID, actorName := auditActor(c)
		err = database.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("user_id = ?", user.ID).Delete(&models.Payment{}).Error; err != nil {
				return err
			}
			if err := tx.Where("user_id = ?", user.ID).Delete(&models.MembershipFee{}).Error; err != nil {
				return err
			}
			if err := tx.Where("user_id = ?", user.ID).Delete(&models.FeeBatch{}).Error; err != nil {
				return err
			}
			if err := tx.Where("user_id = ?", user.ID).Delete(&models.CommissionMember{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(user).Error; err != nil {
				return err
			}
			return audit.WriteLog(c.UserContext(), tx, audit.LogOptions{
				UserID:      actorID,
				UserName:    actorName,
				EntityType:  "user",
				EntityID:    user.ID,
				Action:      models.AuditActionDelete,
				Description: fmt.Sprintf("Kullanıcı silindi: %s", user.Email),
				Before:      user,
			})
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kullanıcı silinemedi")
		}

		return respond.Message(c, "Kullanıcı silindi")
	}
}
