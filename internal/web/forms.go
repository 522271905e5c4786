package web

import (
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/roach88/labcalc/internal/calc"
	"github.com/roach88/labcalc/internal/calculator"
	"github.com/roach88/labcalc/internal/history"
)

var templateFuncs = template.FuncMap{
	"pending": func(e history.Entry) bool { return e.IsPendingGrowth() },
	"cost": func(e history.Entry) string {
		if cost, ok := e.Cost(); ok {
			return "$" + cost.StringFixed(2)
		}
		return ""
	},
	"when": func(ts history.Timestamp) string { return ts.Format("2006-01-02 15:04") },
}

type group struct {
	Name        string
	Calculators []*calculator.Calculator
}

func (s *Server) index(c *gin.Context) {
	var groups []group
	for _, g := range calculator.Groups() {
		groups = append(groups, group{Name: g, Calculators: calculator.InGroup(g)})
	}
	c.HTML(http.StatusOK, "index.tmpl", gin.H{"Groups": groups})
}

// formField is a calculator field with the value to show in the form.
type formField struct {
	calculator.Field
	Value string
	Error string
}

func formFields(def *calculator.Calculator, values map[string]string, fieldErrs map[string]string) []formField {
	fields := make([]formField, 0, len(def.Fields))
	for _, f := range def.Fields {
		v, ok := values[f.Name]
		if !ok {
			v = f.Default
		}
		fields = append(fields, formField{Field: f, Value: v, Error: fieldErrs[f.Name]})
	}
	return fields
}

func (s *Server) form(c *gin.Context) {
	def, ok := calculator.Lookup(c.Param("calculator"))
	if !ok {
		c.HTML(http.StatusNotFound, "error.tmpl", gin.H{"Message": "Unknown calculator " + strconv.Quote(c.Param("calculator"))})
		return
	}
	c.HTML(http.StatusOK, "form.tmpl", gin.H{"Calculator": def, "Fields": formFields(def, nil, nil)})
}

func (s *Server) submitForm(c *gin.Context) {
	def, ok := calculator.Lookup(c.Param("calculator"))
	if !ok {
		c.HTML(http.StatusNotFound, "error.tmpl", gin.H{"Message": "Unknown calculator " + strconv.Quote(c.Param("calculator"))})
		return
	}

	values := map[string]string{}
	in := calculator.Inputs{}
	for _, f := range def.Fields {
		v := strings.TrimSpace(c.PostForm(f.Name))
		values[f.Name] = v
		if v != "" {
			in[f.Name] = v
		}
	}

	r, err := s.sess.Calculate(def.Name, in)
	s.metrics.observe(def.Name, err)
	if err != nil {
		status, fieldErrs := formError(err)
		c.HTML(status, "form.tmpl", gin.H{
			"Calculator": def,
			"Fields":     formFields(def, values, fieldErrs),
			"Error":      err.Error(),
		})
		return
	}

	data := gin.H{"Calculator": def, "Outcome": r.Outcome, "Report": r.Outcome.Text()}
	if c.PostForm("save") != "" {
		rec, err := s.sess.Save(c.Request.Context(), r)
		if err != nil {
			_ = c.Error(err)
			data["SaveError"] = err.Error()
		} else {
			s.metrics.saves.Inc()
			data["Saved"] = rec
		}
	}
	c.HTML(http.StatusOK, "result.tmpl", data)
}

// formError picks the status for a rejected form and the per-field
// message, if the error names a field.
func formError(err error) (int, map[string]string) {
	var ce *calc.Error
	if !errors.As(err, &ce) {
		return http.StatusInternalServerError, nil
	}
	status := http.StatusUnprocessableEntity
	if ce.Kind == calc.KindDomain {
		status = http.StatusBadRequest
	}
	if ce.Field == "" {
		return status, nil
	}
	return status, map[string]string{ce.Field: ce.Message}
}

func (s *Server) historyPage(c *gin.Context) {
	entries, err := s.entries(c)
	if err != nil {
		_ = c.Error(err)
		c.HTML(http.StatusInternalServerError, "error.tmpl", gin.H{"Message": err.Error()})
		return
	}
	records := make([]history.Record, len(entries))
	for i, e := range entries {
		records[i] = e.Record
	}
	summary := history.Summarize(records)
	c.HTML(http.StatusOK, "history.tmpl", gin.H{
		"Entries": entries,
		"Summary": summary,
		"Spend":   summary.Spend.StringFixed(2),
		"Error":   c.Query("error"),
	})
}

func (s *Server) finalizeForm(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.Redirect(http.StatusSeeOther, "/history?error="+template.URLQueryEscaper("invalid selection"))
		return
	}
	finalCount, err := calc.ParseNumber(c.PostForm("final_count"))
	if err == nil {
		_, err = s.sess.Finalize(c.Request.Context(), index, finalCount)
	}
	if err != nil {
		c.Redirect(http.StatusSeeOther, "/history?error="+template.URLQueryEscaper(err.Error()))
		return
	}
	c.Redirect(http.StatusSeeOther, "/history")
}
