// --------------------------------------------------------------------------------
// Author: Thomas F McGeehan V
//
// This file is part of a software project developed by Thomas F McGeehan V.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
//
// For more information about the MIT License, please visit:
// https://opensource.org/licenses/MIT
//
// Acknowledgment appreciated but not required.
// --------------------------------------------------------------------------------

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/TFMV/OrganMatchPro/internal/bundle"
	"github.com/TFMV/OrganMatchPro/internal/matcher"
	"github.com/TFMV/OrganMatchPro/internal/metrics"
	"github.com/TFMV/OrganMatchPro/internal/profile"
	"github.com/TFMV/OrganMatchPro/pkg/utils"
)

// Error codes returned in the "code" field of error bodies.
const (
	CodeInvalidArgument  = "invalid_argument"
	CodeMalformedQuery   = "malformed_query"
	CodeIndexUnavailable = "index_unavailable"
	CodeInternal         = "internal"
)

// Handler serves the matching endpoints from one immutable engine.
type Handler struct {
	engine         *matcher.Engine
	info           *bundle.Info
	defaultMatches int
	logger         *zap.Logger
}

// NewHandler creates a Handler. engine may be nil, in which case every endpoint
// reports the index as unavailable.
func NewHandler(engine *matcher.Engine, info *bundle.Info, defaultMatches int, logger *zap.Logger) *Handler {
	if defaultMatches <= 0 {
		defaultMatches = matcher.DefaultMatches
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if engine != nil {
		metrics.IndexRecords.Set(float64(engine.IndexSize()))
	}
	return &Handler{engine: engine, info: info, defaultMatches: defaultMatches, logger: logger}
}

type matchRequest struct {
	Profile  json.RawMessage `json:"profile"`
	NMatches *int            `json:"n_matches"`
}

type matchResponse struct {
	ID              int               `json:"id"`
	Distance        float64           `json:"distance"`
	SimilarityScore float64           `json:"similarity_score"`
	Category        string            `json:"category"`
	Delta           string            `json:"delta,omitempty"`
	Attributes      map[string]string `json:"attributes"`
}

type matchesResponse struct {
	Matches    []matchResponse `json:"matches"`
	TotalFound int             `json:"total_found"`
	Degenerate bool            `json:"degenerate"`
}

type compatibilityRequest struct {
	DonorProfile     json.RawMessage `json:"donor_profile"`
	RecipientProfile json.RawMessage `json:"recipient_profile"`
}

// MatchHandler ranks reference records against a recipient profile.
func (h *Handler) MatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var req matchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			metrics.ObserveMatch(metrics.OutcomeInvalid, start)
			utils.SendError(c, http.StatusBadRequest, CodeInvalidArgument, err)
			return
		}
		p, err := decodeProfile("profile", req.Profile)
		if err != nil {
			metrics.ObserveMatch(metrics.OutcomeInvalid, start)
			utils.SendError(c, http.StatusBadRequest, CodeInvalidArgument, err)
			return
		}
		n := h.defaultMatches
		if req.NMatches != nil {
			n = *req.NMatches
		}

		if h.engine == nil {
			metrics.ObserveMatch(metrics.OutcomeUnavailable, start)
			utils.SendError(c, http.StatusServiceUnavailable, CodeIndexUnavailable, matcher.ErrIndexUnavailable)
			return
		}
		res, err := h.engine.FindMatches(p, n)
		if err != nil {
			h.sendEngineError(c, err, start)
			return
		}

		outcome := metrics.OutcomeOK
		if res.Degenerate {
			outcome = metrics.OutcomeDegenerate
			h.logger.Debug("Query shares no vocabulary with the reference corpus", zap.Int("n_matches", n))
		}
		metrics.ObserveMatch(outcome, start)

		out := matchesResponse{
			Matches:    make([]matchResponse, len(res.Matches)),
			TotalFound: len(res.Matches),
			Degenerate: res.Degenerate,
		}
		for i, m := range res.Matches {
			out.Matches[i] = matchResponse{
				ID:              m.ID,
				Distance:        m.Distance,
				SimilarityScore: m.Similarity,
				Category:        m.Record.Document,
				Delta:           m.Record.Outcome,
				Attributes:      m.Record.Attributes,
			}
		}
		c.JSON(http.StatusOK, out)
	}
}

// CompatibilityHandler scores a donor profile against a recipient profile.
func (h *Handler) CompatibilityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req compatibilityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.SendError(c, http.StatusBadRequest, CodeInvalidArgument, err)
			return
		}
		donor, err := decodeProfile("donor_profile", req.DonorProfile)
		if err != nil {
			utils.SendError(c, http.StatusBadRequest, CodeInvalidArgument, err)
			return
		}
		recipient, err := decodeProfile("recipient_profile", req.RecipientProfile)
		if err != nil {
			utils.SendError(c, http.StatusBadRequest, CodeInvalidArgument, err)
			return
		}
		if h.engine == nil {
			utils.SendError(c, http.StatusServiceUnavailable, CodeIndexUnavailable, errors.New("model not loaded"))
			return
		}

		score := h.engine.CompatibilityScore(donor, recipient)
		metrics.CompatibilityScores.Observe(score)
		c.JSON(http.StatusOK, gin.H{"compatibility_score": score})
	}
}

// HealthCheckHandler reports whether the engine can serve match queries.
func (h *Handler) HealthCheckHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		zuluTime := time.Now().UTC().Format(time.RFC3339)
		if h.engine == nil || !h.engine.Ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "UNAVAILABLE",
				"zuluTime": zuluTime,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "OK",
			"zuluTime": zuluTime,
			"records":  h.engine.IndexSize(),
			"bundle":   h.info,
		})
	}
}

func (h *Handler) sendEngineError(c *gin.Context, err error, start time.Time) {
	switch {
	case errors.Is(err, matcher.ErrInvalidArgument):
		metrics.ObserveMatch(metrics.OutcomeInvalid, start)
		utils.SendError(c, http.StatusBadRequest, CodeInvalidArgument, err)
	case errors.Is(err, matcher.ErrMalformedQuery):
		metrics.ObserveMatch(metrics.OutcomeInvalid, start)
		utils.SendError(c, http.StatusBadRequest, CodeMalformedQuery, err)
	case errors.Is(err, matcher.ErrIndexUnavailable):
		metrics.ObserveMatch(metrics.OutcomeUnavailable, start)
		h.logger.Error("Reference index unavailable", zap.Error(err))
		utils.SendError(c, http.StatusServiceUnavailable, CodeIndexUnavailable, err)
	default:
		metrics.ObserveMatch(metrics.OutcomeError, start)
		h.logger.Error("Match query failed", zap.Error(err))
		utils.SendError(c, http.StatusInternalServerError, CodeInternal, err)
	}
}

// decodeProfile requires raw to be a JSON object.
func decodeProfile(field string, raw json.RawMessage) (profile.Profile, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, errors.New(field + " is required")
	}
	var p map[string]any
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, errors.New(field + " must be a JSON object")
	}
	return profile.Profile(p), nil
}
