package api

import (
	"log/slog"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/victornm/edusync/internal/errors"
	"github.com/victornm/edusync/internal/leaderboard"
	"github.com/victornm/edusync/internal/result"
)

type Config struct {
	Router      gin.IRouter
	Result      *result.Service
	Leaderboard *leaderboard.Service
}

type API struct {
	rs *result.Service
	ls *leaderboard.Service
}

func New(c Config) *API {
	a := &API{
		rs: c.Result,
		ls: c.Leaderboard,
	}

	r := c.Router.Group("/results")
	r.GET("", a.ListResults)
	r.GET("/by-instructor/:instructorId", a.ListResultsByInstructor)
	r.GET("/:id", a.GetResult)
	r.POST("", a.CreateResult)
	r.PUT("/:id", a.UpdateResult)
	r.DELETE("/:id", a.DeleteResult)

	c.Router.GET("/assessments/:id/leaderboard", a.GetLeaderboard)

	return a
}

func (a *API) ListResults(c *gin.Context) {
	rs, err := a.rs.ListResults(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]Result, 0, len(rs))
	for _, r := range rs {
		resp = append(resp, fromResult(r))
	}

	c.JSON(http.StatusOK, resp)
}

func (a *API) ListResultsByInstructor(c *gin.Context) {
	id, err := parseID(c, "instructorId")
	if err != nil {
		writeError(c, err)
		return
	}

	rows, err := a.rs.ListByInstructor(c.Request.Context(), result.ListByInstructorRequest{InstructorID: id})
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]InstructorResult, 0, len(rows))
	for _, r := range rows {
		resp = append(resp, InstructorResult{
			StudentName:     r.StudentName,
			StudentEmail:    r.StudentEmail,
			AssessmentTitle: r.AssessmentTitle,
			CourseTitle:     r.CourseTitle,
			Score:           r.Score.InexactFloat64(),
			MaxScore:        r.MaxScore.InexactFloat64(),
			AttemptDate:     r.AttemptDate,
		})
	}

	c.JSON(http.StatusOK, resp)
}

func (a *API) GetResult(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}

	r, err := a.rs.GetResult(c.Request.Context(), result.GetResultRequest{ResultID: id})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, fromResult(*r))
}

func (a *API) CreateResult(c *gin.Context) {
	var in ResultInput
	if err := c.ShouldBindJSON(&in); err != nil {
		writeError(c, errors.InvalidArgument("invalid result: %v", err))
		return
	}

	r, err := a.rs.CreateResult(c.Request.Context(), result.CreateResultRequest{
		AssessmentID: in.AssessmentID,
		UserID:       in.UserID,
		Score:        *in.Score,
		AttemptDate:  in.AttemptDate,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Location", path.Join(c.Request.URL.Path, r.ResultID.String()))
	c.JSON(http.StatusCreated, fromResult(*r))
}

func (a *API) UpdateResult(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}

	var in ResultInput
	if err := c.ShouldBindJSON(&in); err != nil {
		writeError(c, errors.InvalidArgument("invalid result: %v", err))
		return
	}

	err = a.rs.UpdateResult(c.Request.Context(), result.UpdateResultRequest{
		ResultID:     id,
		AssessmentID: in.AssessmentID,
		UserID:       in.UserID,
		Score:        *in.Score,
		AttemptDate:  in.AttemptDate,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) DeleteResult(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}

	if err := a.rs.DeleteResult(c.Request.Context(), result.DeleteResultRequest{ResultID: id}); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) GetLeaderboard(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}

	l, err := a.ls.GetLeaderboard(c.Request.Context(), leaderboard.GetLeaderboardRequest{AssessmentID: id})
	if err != nil {
		writeError(c, err)
		return
	}

	resp := Leaderboard{
		AssessmentID: l.AssessmentID,
		Entries:      make([]LeaderboardEntry, 0, len(l.Entries)),
	}
	for _, e := range l.Entries {
		resp.Entries = append(resp.Entries, LeaderboardEntry{
			ResultID: e.ResultID,
			UserID:   e.UserID,
			Score:    e.Score,
		})
	}

	c.JSON(http.StatusOK, resp)
}

func parseID(c *gin.Context, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		return uuid.Nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("invalid %s: %q", param, c.Param(param)),
			errors.WithCause(err),
		)
	}

	return id, nil
}

func writeError(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		slog.ErrorContext(c, "api: request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), e)
}
