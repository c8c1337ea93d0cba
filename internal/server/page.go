package server

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/kartoza/stunting-predictor/internal/i18n"
	"github.com/kartoza/stunting-predictor/internal/predictor"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// pageData feeds templates/index.html
type pageData struct {
	Lang      string
	Languages []string
	T         func(key string) string

	SexLabels []string
	MaxAge    float64
	MaxHeight float64

	Age    float64
	Sex    string
	Height float64

	HasResult bool
	Result    string
}

func (s *Server) newPageData(tag language.Tag) pageData {
	langs := make([]string, 0, len(i18n.Supported()))
	for _, t := range i18n.Supported() {
		langs = append(langs, t.String())
	}

	return pageData{
		Lang:      tag.String(),
		Languages: langs,
		T: func(key string) string {
			return s.bundle.Translate(tag, key)
		},
		SexLabels: predictor.SexLabels(),
		MaxAge:    predictor.MaxAgeMonths,
		MaxHeight: predictor.MaxHeightCm,
		Sex:       predictor.Male.String(),
	}
}

// resolveLanguage picks the page language and remembers an explicit choice
func (s *Server) resolveLanguage(w http.ResponseWriter, r *http.Request) language.Tag {
	tag, persist := s.bundle.Resolve(r)
	if persist {
		i18n.SetLanguageCookie(w, tag)
	}
	return tag
}

// handleIndex renders the empty form
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := s.newPageData(s.resolveLanguage(w, r))
	s.render(w, http.StatusOK, data)
}

// handleSubmit classifies the posted form and renders the result card
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	data := s.newPageData(s.resolveLanguage(w, r))
	data.HasResult = true

	if err := r.ParseForm(); err != nil {
		data.Result = predictor.MessageFor(predictor.InvalidInput("", errors.New("formulir tidak valid")))
		s.render(w, http.StatusBadRequest, data)
		return
	}

	data.Sex = r.PostFormValue(predictor.FieldSex)

	age, ageErr := parseNumber(predictor.FieldAge, "Umur", r.PostFormValue(predictor.FieldAge))
	height, heightErr := parseNumber(predictor.FieldHeight, "Tinggi Badan", r.PostFormValue(predictor.FieldHeight))
	data.Age, data.Height = age, height

	switch {
	case ageErr != nil:
		data.Result = predictor.MessageFor(ageErr)
	case heightErr != nil:
		data.Result = predictor.MessageFor(heightErr)
	default:
		data.Result = s.pred.Message(age, data.Sex, height)
	}

	s.render(w, http.StatusOK, data)
}

// parseNumber reads a numeric form field
func parseNumber(field, name, raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, predictor.InvalidInput(field, errors.New(name+" harus berupa angka"))
	}
	return v, nil
}

// render writes the page with status, or a 500 if the template fails
func (s *Server) render(w http.ResponseWriter, status int, data pageData) {
	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		s.logger.Error("failed to render page", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}
