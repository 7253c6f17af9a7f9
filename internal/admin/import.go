package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"kooperatif-backend/internal/auth"
	"kooperatif-backend/internal/respond"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const maxImportRows = 5000

var (
	ErrEmptyWorkbook      = errors.New("Excel dosyası boş")
	ErrUnreadableWorkbook = errors.New("Excel dosyası okunamadı")
	ErrTooManyRows        = fmt.Errorf("en fazla %d satır içe aktarılabilir", maxImportRows)
)

type column int

const (
	colFirstName column = iota
	colLastName
	colEmail
	colPhone
	colPassword
	colCount
)

// headerAliases maps normalized header cells to columns.
var headerAliases = map[string]column{
	"ad":       colFirstName,
	"adi":      colFirstName,
	"isim":     colFirstName,
	"soyad":    colLastName,
	"soyadi":   colLastName,
	"eposta":   colEmail,
	"email":    colEmail,
	"mail":     colEmail,
	"telefon":  colPhone,
	"tel":      colPhone,
	"sifre":    colPassword,
	"parola":   colPassword,
	"password": colPassword,
}

type ImportRowError struct {
	Row   int    `json:"row"`
	Email string `json:"email,omitempty"`
	Error string `json:"error"`
}

type ImportedUser struct {
	Row   int    `json:"row"`
	ID    uint   `json:"id"`
	Email string `json:"email"`
	// Yalnızca dosyada şifre verilmediyse dolu döner.
	GeneratedPassword string `json:"generated_password,omitempty"`
}

type ImportResult struct {
	Created int              `json:"created"`
	Failed  int              `json:"failed"`
	Users   []ImportedUser   `json:"users"`
	Errors  []ImportRowError `json:"errors"`
}

// importRow is validated per row; the json names appear in error messages.
type importRow struct {
	FirstName string `json:"Ad" validate:"required,max=100"`
	LastName  string `json:"Soyad" validate:"required,max=100"`
	Email     string `json:"E-posta" validate:"required,email"`
	Phone     string `json:"Telefon" validate:"max=30"`
}

// normalizeTurkish: Türkçe karakterleri ASCII karşılıklarına çevirir
// Örn: "E-Posta" -> "eposta", "Şifre" -> "sifre"
func normalizeTurkish(s string) string {
	replacements := map[rune]string{
		'ç': "c", 'Ç': "C",
		'ğ': "g", 'Ğ': "G",
		'ı': "i", 'İ': "I",
		'ö': "o", 'Ö': "O",
		'ş': "s", 'Ş': "S",
		'ü': "u", 'Ü': "U",
	}

	var result strings.Builder
	for _, r := range strings.TrimSpace(s) {
		if replacement, ok := replacements[r]; ok {
			result.WriteString(replacement)
			continue
		}
		switch r {
		case ' ', '-', '_', '.':
			continue
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}

// headerMapping returns the column positions named by row, or nil when the
// row is not a header (no e-posta column).
func headerMapping(row []string) []int {
	idx := make([]int, colCount)
	for i := range idx {
		idx[i] = -1
	}
	for i, cell := range row {
		if col, ok := headerAliases[normalizeTurkish(cell)]; ok && idx[col] == -1 {
			idx[col] = i
		}
	}
	if idx[colEmail] == -1 {
		return nil
	}
	return idx
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// ImportMembers reads an .xlsx workbook whose first sheet lists members in
// the columns Ad, Soyad, E-posta, Telefon, Şifre. Every valid row is created
// through auth.CreateMember, the same path as self registration. Invalid rows
// and duplicate e-mails are reported per row and do not stop the import.
func ImportMembers(ctx context.Context, db *gorm.DB, r io.Reader) (*ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableWorkbook, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyWorkbook
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableWorkbook, err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyWorkbook
	}

	// Başlık satırı yoksa sütunlar sabit sırada kabul edilir.
	start := 0
	mapping := headerMapping(rows[0])
	if mapping != nil {
		start = 1
	} else {
		mapping = []int{0, 1, 2, 3, 4}
	}
	if len(rows)-start > maxImportRows {
		return nil, ErrTooManyRows
	}

	res := &ImportResult{Users: []ImportedUser{}, Errors: []ImportRowError{}}
	seen := make(map[string]int)

	for i := start; i < len(rows); i++ {
		rowNo := i + 1
		row := rows[i]

		in := auth.NewMemberInput{
			FirstName: cell(row, mapping[colFirstName]),
			LastName:  cell(row, mapping[colLastName]),
			Email:     auth.NormalizeEmail(cell(row, mapping[colEmail])),
			Phone:     cell(row, mapping[colPhone]),
			Password:  cell(row, mapping[colPassword]),
		}
		if in.FirstName == "" && in.LastName == "" && in.Email == "" {
			continue
		}

		fail := func(msg string) {
			res.Failed++
			res.Errors = append(res.Errors, ImportRowError{Row: rowNo, Email: in.Email, Error: msg})
		}

		if err := respond.Validate(importRow{
			FirstName: in.FirstName,
			LastName:  in.LastName,
			Email:     in.Email,
			Phone:     in.Phone,
		}); err != nil {
			fail(err.Error())
			continue
		}
		if prev, ok := seen[in.Email]; ok {
			fail(fmt.Sprintf("e-posta dosyada tekrar ediyor (satır %d)", prev))
			continue
		}
		seen[in.Email] = rowNo

		generated := ""
		if in.Password == "" {
			if generated, err = auth.RandomPassword(10); err != nil {
				return nil, err
			}
			in.Password = generated
		}

		user, err := auth.CreateMember(ctx, db, in)
		if err != nil {
			if errors.Is(err, auth.ErrEmailTaken) || errors.Is(err, auth.ErrPasswordTooShort) {
				fail(err.Error())
				continue
			}
			return nil, err
		}

		res.Created++
		res.Users = append(res.Users, ImportedUser{
			Row:               rowNo,
			ID:                user.ID,
			Email:             user.Email,
			GeneratedPassword: generated,
		})
	}
	return res, nil
}
