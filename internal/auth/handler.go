package auth

import (
	"errors"

	"kooperatif-backend/internal/config"
	"kooperatif-backend/internal/database"
	"kooperatif-backend/internal/models"
	"kooperatif-backend/internal/respond"

	"github.com/gofiber/fiber/v2"
)

type RegisterRequest struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"max=30"`
	Address   string `json:"address" validate:"max=255"`
	Password  string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UpdateProfileRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,min=1,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,max=30"`
	Address   *string `json:"address" validate:"omitempty,max=255"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// POST /api/auth/register
func RegisterHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterRequest
		if err := respond.Parse(c, &body); err != nil {
			return err
		}

		user, err := CreateMember(c.UserContext(), database.DB, NewMemberInput{
			FirstName: body.FirstName,
			LastName:  body.LastName,
			Email:     body.Email,
			Phone:     body.Phone,
			Address:   body.Address,
			Password:  body.Password,
		})
		if errors.Is(err, ErrEmailTaken) {
			return fiber.NewError(fiber.StatusConflict, "Bu e-posta adresi zaten kayıtlı")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kullanıcı oluşturulamadı")
		}

		token, err := GenerateToken(cfg.JWTSecret, cfg.JWTTTL, user)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Token oluşturulamadı")
		}

		return respond.Created(c, "Kayıt başarılı", AuthResponse{Token: token, User: user})
	}
}

// POST /api/auth/login
func LoginHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := respond.Parse(c, &body); err != nil {
			return err
		}

		var user models.User
		if err := database.DB.WithContext(c.UserContext()).
			Where("email = ?", NormalizeEmail(body.Email)).
			First(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "E-posta veya şifre hatalı")
		}

		if !CheckPassword(user.PasswordHash, body.Password) {
			return fiber.NewError(fiber.StatusUnauthorized, "E-posta veya şifre hatalı")
		}
		if !user.IsActive {
			return fiber.NewError(fiber.StatusForbidden, "Hesabınız pasif durumda, yönetici ile iletişime geçin")
		}

		token, err := GenerateToken(cfg.JWTSecret, cfg.JWTTTL, &user)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Token oluşturulamadı")
		}

		return respond.MessageWithData(c, "Giriş başarılı", AuthResponse{Token: token, User: &user})
	}
}

// GET /api/auth/me
func MeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := CurrentUser(c)
		if err != nil {
			return err
		}
		return respond.OK(c, user)
	}
}

// PUT /api/auth/profile
func UpdateProfileHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := CurrentUser(c)
		if err != nil {
			return err
		}

		var body UpdateProfileRequest
		if err := respond.Parse(c, &body); err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if body.FirstName != nil {
			updates["first_name"] = *body.FirstName
		}
		if body.LastName != nil {
			updates["last_name"] = *body.LastName
		}
		if body.Phone != nil {
			updates["phone"] = *body.Phone
		}
		if body.Address != nil {
			updates["address"] = *body.Address
		}
		if len(updates) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Güncellenecek alan yok")
		}

		if err := database.DB.WithContext(c.UserContext()).Model(user).Updates(updates).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Profil güncellenemedi")
		}
		return respond.MessageWithData(c, "Profil güncellendi", user)
	}
}

// PUT /api/auth/password
func ChangePasswordHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := CurrentUser(c)
		if err != nil {
			return err
		}

		var body ChangePasswordRequest
		if err := respond.Parse(c, &body); err != nil {
			return err
		}

		if !CheckPassword(user.PasswordHash, body.CurrentPassword) {
			return fiber.NewError(fiber.StatusBadRequest, "Mevcut şifre hatalı")
		}

		hash, err := HashPassword(body.NewPassword)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Şifre hashlenemedi")
		}
		if err := database.DB.WithContext(c.UserContext()).Model(user).Update("password_hash", hash).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Şifre güncellenemedi")
		}
		return respond.Message(c, "Şifre güncellendi")
	}
}
