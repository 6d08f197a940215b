// Command deferred-facilitator runs the HTTP facilitator for the deferred
// x402 payment scheme: voucher issuance, verification, settlement, the
// deposit- and flush-authorization side channels, and account queries.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/x402-foundation/x402-deferred/deferred/escrow"
	"github.com/x402-foundation/x402-deferred/deferred/facilitator"
	"github.com/x402-foundation/x402-deferred/deferred/store"
	"github.com/x402-foundation/x402-deferred/internal/config"
)

// nowFunc is the wall clock every handler uses for freshness checks. It is
// a variable, not a direct time.Now() call, so tests can swap it; the
// facilitator core itself always takes an explicit now parameter.
var nowFunc = time.Now

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Fatal("facilitator exited", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	rpc, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("dial rpc: %w", err)
	}
	chainClient, err := escrow.NewEthClient(rpc, cfg.SignerKeyHex)
	if err != nil {
		return fmt.Errorf("build chain client: %w", err)
	}

	voucherStore := store.NewInMemoryVoucherStore()
	f := facilitator.New(chainClient, cfg.EscrowAddr, voucherStore)

	log.Info("facilitator starting",
		zap.String("listenAddr", cfg.ListenAddr),
		zap.String("escrowAddr", cfg.EscrowAddr),
		zap.Int64("chainId", cfg.ChainID))

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(loggingMiddleware(log))
	router.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.Timeout())
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	srv := newServer(f, voucherStore, log)
	srv.routes(router)

	return router.Run(cfg.ListenAddr)
}

// loggingMiddleware emits one structured event per request, matching the
// teacher's gin adapter's per-request logging shape.
func loggingMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request handled",
			zap.String("requestId", c.GetString(requestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

const requestIDKey = "requestId"

// requestIDMiddleware stamps every request with a trace id, the same
// prefix+UUID shape the teacher uses for payment identifiers, echoed back
// on the response so a caller can correlate it with facilitator logs.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := "req_" + strings.ReplaceAll(uuid.New().String(), "-", "")
		c.Set(requestIDKey, id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}
