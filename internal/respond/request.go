package respond

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const DateLayout = "2006-01-02"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Hata mesajlarında struct alan adı yerine JSON adı görünsün
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Parse decodes the request body into out and runs struct validation.
func Parse(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
	}
	return Validate(out)
}

// Validate runs the validate tags of s and converts the first failure into a
// 400 error naming the JSON field.
func Validate(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
	}
	return fiber.NewError(fiber.StatusBadRequest, fieldMessage(verrs[0]))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s zorunlu", field)
	case "email":
		return fmt.Sprintf("%s geçerli bir e-posta olmalı", field)
	case "min":
		return fmt.Sprintf("%s en az %s olmalı", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s en fazla %s olmalı", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s %s değerinden büyük olmalı", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s en az %s olmalı", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s şu değerlerden biri olmalı: %s", field, fe.Param())
	case "datetime":
		return fmt.Sprintf("%s tarih formatı '%s' olmalı", field, fe.Param())
	default:
		return fmt.Sprintf("%s geçersiz", field)
	}
}

// ParamID reads a positive integer route parameter.
func ParamID(c *fiber.Ctx, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || v == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Geçersiz "+name)
	}
	return uint(v), nil
}

// QueryID reads an optional positive integer query parameter; 0 means absent.
func QueryID(c *fiber.Ctx, name string) (uint, error) {
	s := c.Query(name)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, name+" geçersiz")
	}
	return uint(v), nil
}

// ParseDate parses a YYYY-MM-DD string as a UTC date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fiber.NewError(fiber.StatusBadRequest, "Tarih formatı 'YYYY-MM-DD' olmalı")
	}
	return d, nil
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Page struct {
	Items      any   `json:"items"`
	TotalRows  int64 `json:"total_rows"`
	TotalPages int   `json:"total_pages"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
}

func pageParams(c *fiber.Ctx) (int, int) {
	page := c.QueryInt("page", 1)
	if page <= 0 {
		page = 1
	}
	size := c.QueryInt("page_size", DefaultPageSize)
	switch {
	case size > MaxPageSize:
		size = MaxPageSize
	case size <= 0:
		size = DefaultPageSize
	}
	return page, size
}

// Paginate is a GORM scope applying page/page_size query parameters.
func Paginate(c *fiber.Ctx) func(db *gorm.DB) *gorm.DB {
	page, size := pageParams(c)
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset((page - 1) * size).Limit(size)
	}
}

func NewPage(c *fiber.Ctx, items any, total int64) Page {
	page, size := pageParams(c)
	pages := 0
	if total > 0 {
		pages = int(math.Ceil(float64(total) / float64(size)))
	}
	return Page{Items: items, TotalRows: total, TotalPages: pages, Page: page, PageSize: size}
}
