package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	"github.com/zerochrono/copilot-backend/internal/graph"
	"github.com/zerochrono/copilot-backend/internal/http/response"
	"github.com/zerochrono/copilot-backend/internal/platform/logger"
	"github.com/zerochrono/copilot-backend/internal/services"
)

type CopilotHandler struct {
	log *logger.Logger
	svc services.CopilotService
}

func NewCopilotHandler(log *logger.Logger, svc services.CopilotService) *CopilotHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &CopilotHandler{log: log.With("handler", "CopilotHandler"), svc: svc}
}

type generateRequest struct {
	Prompt       string `json:"prompt"`
	CSVContent   string `json:"csv_content"`
	CSVDelimiter string `json:"csv_delimiter"`
	CSVMaxRows   *int   `json:"csv_max_rows"`
	RAGColumns   string `json:"rag_columns"`
	RAGMaxChars  *int   `json:"rag_max_chars"`
	RAGTopK      int    `json:"rag_top_k"`
}

type generateResponse struct {
	Content string `json:"content"`
	Model   string `json:"model"`
}

// POST /generate
func (h *CopilotHandler) Generate(c *gin.Context) {
	var req generateRequest
	if err := bindJSON(c, &req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	res, err := h.svc.Generate(c.Request.Context(), services.GenerateInput{
		Prompt:       req.Prompt,
		CSVContent:   req.CSVContent,
		CSVDelimiter: req.CSVDelimiter,
		CSVMaxRows:   req.CSVMaxRows,
		RAGColumns:   req.RAGColumns,
		RAGMaxChars:  req.RAGMaxChars,
		RAGTopK:      req.RAGTopK,
	})
	if err != nil {
		h.log.Warn("generate failed", "error", err)
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, generateResponse{Content: res.Content, Model: res.ModelUsed})
}

type graphPayload struct {
	Nodes []graph.ServedNode `json:"nodes"`
	Edges []graph.Edge       `json:"edges"`
	Error string             `json:"error,omitempty"`
}

// GET /graph always answers with the nodes/edges shape; a failed on-demand
// build is reported in the error field with a 200.
func (h *CopilotHandler) Graph(c *gin.Context) {
	view, err := h.svc.GraphView(c.Request.Context())
	if err != nil {
		h.log.Warn("graph view failed", "error", err)
		status := http.StatusInternalServerError
		var be *services.BuildError
		if errors.As(err, &be) {
			status = http.StatusOK
		}
		c.JSON(status, graphPayload{Nodes: []graph.ServedNode{}, Edges: []graph.Edge{}, Error: err.Error()})
		return
	}
	response.RespondOK(c, graphPayload{Nodes: view.Nodes, Edges: view.Edges})
}

type graphRAGRequest struct {
	Question     string `json:"question"`
	Query        string `json:"query"`
	TopK         *int   `json:"top_k"`
	NeighborK    *int   `json:"neighbor_k"`
	IncludeTypes any    `json:"include_types"`
}

// POST /graph-rag
func (h *CopilotHandler) GraphRAG(c *gin.Context) {
	var req graphRAGRequest
	if err := bindJSON(c, &req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	question := req.Question
	if question == "" {
		question = req.Query
	}
	var include []string
	if list, ok := req.IncludeTypes.([]any); ok {
		include = cast.ToStringSlice(list)
	}
	res, err := h.svc.AskGraph(c.Request.Context(), services.AskInput{
		Question:     question,
		TopK:         req.TopK,
		NeighborK:    req.NeighborK,
		IncludeTypes: include,
	})
	if err != nil {
		h.log.Warn("graph-rag failed", "error", err)
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, res)
}

// bindJSON decodes the request body; an empty body decodes to the zero value.
func bindJSON(c *gin.Context, dst any) error {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
