package api

import (
	"encoding/base64"
	"encoding/hex"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/protrace/registry-engine/internal/db"
	"github.com/protrace/registry-engine/internal/merkle"
	"github.com/protrace/registry-engine/internal/registry"
	"github.com/protrace/registry-engine/pkg/models"
)

// maxBatchSize caps a single batch-register request to prevent unbounded
// request bodies from exhausting memory.
const maxBatchSize = 500

type APIHandler struct {
	reg     *registry.Registry
	dbStore *db.PostgresStore
	wsHub   *Hub
	rl      *RateLimiter
}

// SetupRouter wires the REST surface around a Registry: registration,
// proof retrieval, verification, root lookup, health, and a live
// registration feed over WebSocket.
func SetupRouter(reg *registry.Registry, dbStore *db.PostgresStore, wsHub *Hub) *gin.Engine {
	r := gin.Default()

	// Enable CORS — configurable via ALLOWED_ORIGINS env var.
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	rl := NewRateLimiter(30, 5)
	handler := &APIHandler{reg: reg, dbStore: dbStore, wsHub: wsHub, rl: rl}

	// ── Public endpoints (no auth) ─────────────────────────────
	pub := r.Group("/api/v1")
	{
		pub.GET("/health", handler.handleHealth)
		pub.GET("/stream", wsHub.Subscribe)
		pub.GET("/root", handler.handleRoot)
		pub.GET("/leaves", handler.handleListLeaves)
	}

	// ── Protected endpoints (require bearer token if API_AUTH_TOKEN set) ──
	auth := r.Group("/api/v1")
	auth.Use(AuthMiddleware())
	auth.Use(rl.Middleware())
	{
		auth.POST("/register", handler.handleRegister)
		auth.POST("/batch-register", handler.handleBatchRegister)
		auth.GET("/proof/:index", handler.handleProof)
		auth.POST("/verify", handler.handleVerify)
	}

	return r
}

func parseOptions(c *gin.Context) (models.Options, error) {
	opts := models.Options{
		Pointer:       c.PostForm("pointer"),
		PlatformID:    c.DefaultPostForm("platformId", "api"),
		Timestamp:     0,
		ThresholdBits: 0,
	}
	if ts := c.PostForm("timestamp"); ts != "" {
		v, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return opts, err
		}
		opts.Timestamp = v
	}
	if th := c.PostForm("thresholdBits"); th != "" {
		v, err := strconv.Atoi(th)
		if err != nil {
			return opts, err
		}
		opts.ThresholdBits = v
	}
	if as := c.PostForm("allowSelfDuplicate"); as != "" {
		v, err := strconv.ParseBool(as)
		if err != nil {
			return opts, err
		}
		opts.AllowSelfDuplicate = v
	}
	return opts, nil
}

// handleRegister accepts a multipart image upload and registers its DNA.
// POST /api/v1/register (multipart form: file=<image>, pointer, platformId, timestamp)
func (h *APIHandler) handleRegister(c *gin.Context) {
	requestID := uuid.New().String()

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing multipart field \"file\""})
		return
	}
	opts, err := parseOptions(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid form field", "details": err.Error()})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open upload"})
		return
	}
	defer f.Close()

	raw := make([]byte, fileHeader.Size)
	if _, err := f.Read(raw); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read upload"})
		return
	}

	result, err := h.reg.Register(raw, opts)
	if err != nil {
		log.Printf("[api] request=%s register failed: %v", requestID, err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "requestId": requestID})
		return
	}

	if result.Rejected != nil {
		h.rl.Penalize(c.ClientIP())
	}

	c.Writer.Header().Set("X-Request-Id", requestID)
	respondResult(c, result)
}

func respondResult(c *gin.Context, result registry.Result) {
	switch {
	case result.Accepted != nil:
		c.JSON(http.StatusCreated, gin.H{
			"status": "accepted",
			"leaf":   result.Accepted.Leaf,
			"root":   hexRoot(result.Accepted.Root),
			"match":  result.Accepted.BestMatch,
		})
	case result.Rejected != nil:
		c.JSON(http.StatusConflict, gin.H{
			"status": "rejected",
			"match":  result.Rejected.Match,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "empty result"})
	}
}

func hexRoot(root [32]byte) string {
	return hex.EncodeToString(root[:])
}

// rootField renders a registry root for a JSON response, reporting null
// instead of a zero hash when the registry has no leaves yet.
func rootField(root [32]byte, err error) interface{} {
	if err != nil {
		return nil
	}
	return hexRoot(root)
}

type batchRegisterRequest struct {
	Items []struct {
		ImageBase64        string `json:"imageBase64"`
		Pointer            string `json:"pointer"`
		PlatformID         string `json:"platformId"`
		Timestamp          int64  `json:"timestamp"`
		ThresholdBits      int    `json:"thresholdBits"`
		AllowSelfDuplicate bool   `json:"allowSelfDuplicate"`
	} `json:"items"`
}

// handleBatchRegister accepts a JSON body of base64-encoded images and
// registers each one in order, within one registry state.
// POST /api/v1/batch-register
func (h *APIHandler) handleBatchRegister(c *gin.Context) {
	batchID := uuid.New().String()

	var req batchRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.Items) == 0 || len(req.Items) > maxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "batch size must be between 1 and", "max": maxBatchSize})
		return
	}
	log.Printf("[api] batch=%s accepted %d items for registration", batchID, len(req.Items))

	items := make([]registry.BatchItem, 0, len(req.Items))
	for _, it := range req.Items {
		raw, err := decodeBase64Image(it.ImageBase64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid imageBase64 entry", "details": err.Error()})
			return
		}
		items = append(items, registry.BatchItem{
			Raw: raw,
			Options: models.Options{
				Pointer:            it.Pointer,
				PlatformID:         it.PlatformID,
				Timestamp:          it.Timestamp,
				ThresholdBits:      it.ThresholdBits,
				AllowSelfDuplicate: it.AllowSelfDuplicate,
			},
		})
	}

	results, err := h.reg.BatchRegister(items)
	if err != nil {
		log.Printf("[api] batch=%s failed after %d results: %v", batchID, len(results), err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "partial": results, "batchId": batchID})
		return
	}

	rejected := 0
	for _, res := range results {
		if res.Rejected != nil {
			rejected++
		}
	}
	for i := 0; i < rejected; i++ {
		h.rl.Penalize(c.ClientIP())
	}

	root, rootErr := h.reg.Root()
	c.JSON(http.StatusOK, gin.H{"results": results, "root": rootField(root, rootErr), "batchId": batchID})
}

// handleProof returns the membership proof for a registered leaf.
// GET /api/v1/proof/:index
func (h *APIHandler) handleProof(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be an integer"})
		return
	}

	proof, err := h.reg.ProofFor(index)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	root, rootErr := h.reg.Root()
	c.JSON(http.StatusOK, gin.H{
		"index": index,
		"proof": proof,
		"root":  rootField(root, rootErr),
	})
}

type verifyRequest struct {
	LeafIndex int                `json:"leafIndex"`
	DNAHex    string             `json:"dnaHex"`
	Pointer   string             `json:"pointer"`
	Platform  string             `json:"platformId"`
	Timestamp int64              `json:"timestamp"`
	Proof     []models.ProofStep `json:"proof"`
	RootHex   string             `json:"rootHex"`
}

// handleVerify stateless-replays a proof against a claimed root.
// POST /api/v1/verify
func (h *APIHandler) handleVerify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	dna, err := models.ParseDNAHex(req.DNAHex)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	root, err := models.ParseDNAHex(req.RootHex)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rootHex"})
		return
	}

	leaf := models.Leaf{
		Index:      req.LeafIndex,
		DNA:        dna,
		Pointer:    req.Pointer,
		PlatformID: req.Platform,
		Timestamp:  req.Timestamp,
	}

	ok := merkle.VerifyLeaf(leaf, req.Proof, root)
	c.JSON(http.StatusOK, gin.H{"valid": ok})
}

// handleRoot returns the current commitment root.
func (h *APIHandler) handleRoot(c *gin.Context) {
	accepted, rejected := h.reg.Stats()
	root, rootErr := h.reg.Root()
	c.JSON(http.StatusOK, gin.H{
		"root":     rootField(root, rootErr),
		"accepted": accepted,
		"rejected": rejected,
	})
}

// handleListLeaves returns a page of persisted leaves from the database
// collaborator, if connected.
func (h *APIHandler) handleListLeaves(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not connected"})
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	leaves, total, err := h.dbStore.ListLeaves(c.Request.Context(), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch leaves", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": leaves, "total": total, "page": page, "limit": limit})
}

// handleHealth returns engine status for service discovery.
func (h *APIHandler) handleHealth(c *gin.Context) {
	accepted, rejected := h.reg.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":      "operational",
		"engine":      "protrace registry engine",
		"dbConnected": h.dbStore != nil,
		"accepted":    accepted,
		"rejected":    rejected,
	})
}

// BroadcastOutcome is wired as a registry.Hook to publish every registration
// outcome to connected dashboard clients over the WebSocket hub.
func BroadcastOutcome(wsHub *Hub) registry.Hook {
	return func(result registry.Result) {
		wsHub.Broadcast(result)
	}
}

// decodeBase64Image decodes a base64 payload, accepting both standard and
// raw (unpadded) encodings since clients differ on padding.
func decodeBase64Image(s string) ([]byte, error) {
	if raw, err := base64.StdEncoding.DecodeString(s); err == nil {
		return raw, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
