package web

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/roach88/labcalc/internal/calc"
	"github.com/roach88/labcalc/internal/calculator"
	"github.com/roach88/labcalc/internal/history"
	"github.com/roach88/labcalc/internal/reagent"
)

var validate = validator.New()

func init() {
	// decimal.Decimal validates as a number so gte=0 works on prices.
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds the JSON body and runs the validate tags. It
// writes the error response and returns false on failure.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, newAPIError("invalid JSON: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, newAPIError(err.Error()))
			return false
		}
		fields := make(map[string]string)
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, newValidationError(fields))
		return false
	}
	return true
}

// writeError maps err to a status code and envelope: 422 for invalid
// inputs and units, 400 for impossible preparations, 404/409 for history
// lookups and 500 for everything else.
func writeError(c *gin.Context, err error) {
	var calcErr *calc.Error
	switch {
	case errors.As(err, &calcErr) && calcErr.Kind != calc.KindDomain:
		field := calcErr.Field
		if field == "" {
			field = "input"
		}
		c.JSON(http.StatusUnprocessableEntity, newValidationError(map[string]string{field: calcErr.Message}))
	case errors.As(err, &calcErr):
		c.JSON(http.StatusBadRequest, newAPIError(calcErr.Error()))
	case errors.Is(err, history.ErrNotFound):
		c.JSON(http.StatusNotFound, newAPIError(err.Error()))
	case errors.Is(err, history.ErrNotPending):
		c.JSON(http.StatusConflict, newAPIError(err.Error()))
	case errors.Is(err, reagent.ErrInvalidPrice):
		c.JSON(http.StatusUnprocessableEntity, newValidationError(map[string]string{"price_per_unit": err.Error()}))
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, newAPIError("internal error"))
	}
}

type calculateRequest struct {
	Inputs map[string]any `json:"inputs" validate:"required"`
	Save   bool           `json:"save"`
}

type calculateResponse struct {
	Outcome calculator.Outcome `json:"outcome"`
	Report  string             `json:"report"`
	SavedID string             `json:"saved_id,omitempty"`
}

func (s *Server) calculate(c *gin.Context) {
	name := c.Param("calculator")
	if _, ok := calculator.Lookup(name); !ok {
		c.JSON(http.StatusNotFound, newAPIError("unknown calculator "+strconv.Quote(name)))
		return
	}

	var req calculateRequest
	if !bindAndValidate(c, &req) {
		return
	}
	in, err := calculator.InputsFrom(req.Inputs)
	if err != nil {
		writeError(c, err)
		return
	}

	r, err := s.sess.Calculate(name, in)
	s.metrics.observe(name, err)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := calculateResponse{Outcome: r.Outcome, Report: r.Outcome.Text()}
	if req.Save {
		rec, err := s.sess.Save(c.Request.Context(), r)
		if err != nil {
			writeError(c, err)
			return
		}
		s.metrics.saves.Inc()
		resp.SavedID = rec.ID
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) entries(c *gin.Context) ([]history.Entry, error) {
	records, err := s.sess.History.List(c.Request.Context())
	if err != nil {
		return nil, err
	}
	f := history.Filter{Module: c.Query("module"), Status: history.Status(c.Query("status"))}
	return f.Apply(records), nil
}

func (s *Server) listHistory(c *gin.Context) {
	entries, err := s.entries(c)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": entries})
}

func (s *Server) exportCSV(c *gin.Context) {
	entries, err := s.entries(c)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="lab_history.csv"`)
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)
	if err := history.WriteCSV(c.Writer, entries); err != nil {
		_ = c.Error(err)
	}
}

type finalizeRequest struct {
	FinalCount *float64 `json:"final_count" validate:"required,gte=0"`
}

func parseIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 1 {
		c.JSON(http.StatusUnprocessableEntity, newValidationError(map[string]string{"index": "must be a positive whole number"}))
		return 0, false
	}
	return index, true
}

func (s *Server) finalize(c *gin.Context) {
	index, ok := parseIndex(c)
	if !ok {
		return
	}
	var req finalizeRequest
	if !bindAndValidate(c, &req) {
		return
	}
	rec, err := s.sess.Finalize(c.Request.Context(), index, *req.FinalCount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, history.Entry{Index: index, Record: rec})
}

func (s *Server) listReagents(c *gin.Context) {
	prices, err := s.sess.Reagents.List()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reagents": prices})
}

type setReagentRequest struct {
	Name         string          `json:"name" validate:"required"`
	PricePerUnit decimal.Decimal `json:"price_per_unit" validate:"gte=0"`
	Unit         string          `json:"unit"`
}

func (s *Server) setReagent(c *gin.Context) {
	var req setReagentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	unit := reagent.PerMicroliter
	if req.Unit != "" {
		u, err := reagent.ParseUnit(req.Unit)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, newValidationError(map[string]string{"unit": err.Error()}))
			return
		}
		unit = u
	}
	p, err := s.sess.Reagents.Set(req.Name, req.PricePerUnit, unit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
