package http

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"mahjong/internal/core"
	"mahjong/internal/docstore"
)

var templateFuncs = template.FuncMap{
	"money":  func(m core.Money) string { return m.String() },
	"signed": func(m core.Money) string { return m.Signed() },
	"isWin":  func(t core.RecordType) bool { return t == core.Win },
	"stakePresets": func() []string {
		return core.StakePresets
	},
	"otherStake": func() string { return core.OtherStake },
}

// sanitizeInput removes control characters except tab and newlines, and trims.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// validationErrors are caller mistakes, reported as 422.
var validationErrors = []error{
	core.ErrInvalidDate,
	core.ErrInvalidAmount,
	core.ErrInvalidTableFee,
	core.ErrInvalidType,
	core.ErrEmptyID,
	docstore.ErrEmptyID,
}

// statusFor maps a record operation error to a response status. Anything
// that is not a validation error is a failed store write.
func statusFor(err error) int {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return http.StatusUnprocessableEntity
		}
	}
	return http.StatusBadGateway
}

// userMessage is the text shown for err on the form page.
func userMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidDate):
		return "Please enter a valid date."
	case errors.Is(err, core.ErrInvalidAmount):
		return "Please enter a valid amount."
	case errors.Is(err, core.ErrInvalidTableFee):
		return "Please enter a valid table fee."
	case errors.Is(err, core.ErrInvalidType):
		return "Please choose win or loss."
	default:
		return "Saving failed, please try again."
	}
}
