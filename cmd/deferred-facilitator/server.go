package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/x402-foundation/x402-deferred/deferred/facilitator"
	"github.com/x402-foundation/x402-deferred/deferred/store"
	"github.com/x402-foundation/x402-deferred/deferred/voucher"
)

// server holds the facilitator REST handlers' shared dependencies: the
// settlement engine, the store it shares with it, and a logger for one
// structured event per request/settlement state transition.
type server struct {
	facilitator *facilitator.Facilitator
	store       store.VoucherStore
	log         *zap.Logger
}

func newServer(f *facilitator.Facilitator, s store.VoucherStore, log *zap.Logger) *server {
	return &server{facilitator: f, store: s, log: log}
}

func (s *server) routes(r *gin.Engine) {
	g := r.Group("/deferred")
	g.GET("/vouchers/:id/:nonce", s.getVoucher)
	g.GET("/vouchers/:id", s.getVoucherSeries)
	g.GET("/vouchers", s.getVouchers)
	g.GET("/vouchers/available/:buyer/:seller", s.getAvailableVoucher)
	g.POST("/vouchers", s.postVoucher)
	g.POST("/vouchers/:id/:nonce/verify", s.postVerify)
	g.POST("/vouchers/:id/:nonce/settle", s.postSettle)
	g.GET("/vouchers/collections", s.getCollections)
	g.GET("/buyers/:buyer/account", s.getAccount)
	g.POST("/buyers/:buyer/flush", s.postFlush)
}

func errBody(msg string) gin.H { return gin.H{"error": msg} }

func (s *server) getVoucher(c *gin.Context) {
	id := c.Param("id")
	if !voucher.IsValid32ByteHex(id) {
		c.JSON(http.StatusBadRequest, errBody("invalid voucher id"))
		return
	}
	nonce, err := voucher.ParseBigInt(c.Param("nonce"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errBody("invalid nonce"))
		return
	}
	sv, err := s.store.GetVoucher(c.Request.Context(), id, nonce)
	if err != nil || sv == nil {
		c.JSON(http.StatusNotFound, errBody("voucher_not_found"))
		return
	}
	c.JSON(http.StatusOK, sv)
}

func pagination(c *gin.Context) store.Pagination {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	return store.Pagination{Limit: limit, Offset: offset}
}

func (s *server) getVoucherSeries(c *gin.Context) {
	id := c.Param("id")
	if !voucher.IsValid32ByteHex(id) {
		c.JSON(http.StatusBadRequest, errBody("invalid voucher id"))
		return
	}
	series, err := s.store.GetVoucherSeries(c.Request.Context(), id, pagination(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, errBody(err.Error()))
		return
	}
	c.JSON(http.StatusOK, series)
}

func (s *server) getVouchers(c *gin.Context) {
	filter := store.VoucherFilter{}
	if buyer := c.Query("buyer"); buyer != "" {
		filter.Buyer = &buyer
	}
	if seller := c.Query("seller"); seller != "" {
		filter.Seller = &seller
	}
	filter.Latest = c.Query("latest") == "true"

	matches, err := s.store.GetVouchers(c.Request.Context(), filter, pagination(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, errBody(err.Error()))
		return
	}
	c.JSON(http.StatusOK, matches)
}

func (s *server) getAvailableVoucher(c *gin.Context) {
	buyer, seller := c.Param("buyer"), c.Param("seller")
	if !voucher.IsValidAddress(buyer) || !voucher.IsValidAddress(seller) {
		c.JSON(http.StatusBadRequest, errBody("invalid buyer or seller address"))
		return
	}
	sv, err := s.store.GetAvailableVoucher(c.Request.Context(), buyer, seller)
	if err != nil || sv == nil {
		c.JSON(http.StatusNotFound, errBody("voucher_not_found"))
		return
	}
	c.JSON(http.StatusOK, sv)
}

// postVoucherRequest is the POST /deferred/vouchers body.
type postVoucherRequest struct {
	X402Version         int                         `json:"x402Version"`
	PaymentPayload      voucher.PaymentPayload      `json:"paymentPayload"`
	PaymentRequirements voucher.PaymentRequirements `json:"paymentRequirements"`
}

func (s *server) postVoucher(c *gin.Context) {
	var req postVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errBody(err.Error()))
		return
	}

	result := s.facilitator.Verify(c.Request.Context(), req.PaymentPayload, req.PaymentRequirements, nowFunc())
	if !result.IsValid {
		s.log.Warn("voucher rejected", zap.String("reason", result.InvalidReason), zap.String("payer", result.Payer))
		c.JSON(http.StatusBadRequest, errBody(result.InvalidReason))
		return
	}

	sv := voucher.SignedVoucher{Voucher: req.PaymentPayload.Payload.Voucher, Signature: req.PaymentPayload.Payload.Signature}
	if err := s.store.StoreVoucher(c.Request.Context(), sv); err != nil {
		if err == store.ErrVoucherAlreadyExists {
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": "Voucher already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, errBody(err.Error()))
		return
	}
	s.log.Info("voucher stored", zap.String("id", sv.Voucher.ID), zap.String("payer", sv.Voucher.Buyer))
	c.JSON(http.StatusCreated, sv)
}

type verifyRequest struct {
	PaymentPayload      voucher.PaymentPayload      `json:"paymentPayload"`
	PaymentRequirements voucher.PaymentRequirements `json:"paymentRequirements"`
}

func (s *server) postVerify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errBody(err.Error()))
		return
	}
	result := s.facilitator.Verify(c.Request.Context(), req.PaymentPayload, req.PaymentRequirements, nowFunc())
	c.JSON(http.StatusOK, gin.H{"isValid": result.IsValid, "invalidReason": result.InvalidReason, "payer": result.Payer})
}

func (s *server) postSettle(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errBody(err.Error()))
		return
	}
	resp := s.facilitator.Settle(c.Request.Context(), req.PaymentPayload, req.PaymentRequirements, nowFunc())
	s.log.Info("settlement attempted",
		zap.Bool("success", resp.Success),
		zap.String("transaction", resp.Transaction),
		zap.String("errorReason", resp.ErrorReason),
		zap.String("payer", resp.Payer))
	c.JSON(http.StatusOK, resp)
}

func (s *server) getCollections(c *gin.Context) {
	filter := store.CollectionFilter{}
	if id := c.Query("id"); id != "" {
		filter.ID = &id
	}
	if nonceRaw := c.Query("nonce"); nonceRaw != "" {
		nonce, err := voucher.ParseBigInt(nonceRaw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errBody("invalid nonce"))
			return
		}
		filter.Nonce = nonce
	}
	collections, err := s.store.GetVoucherCollections(c.Request.Context(), filter, pagination(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, errBody(err.Error()))
		return
	}
	c.JSON(http.StatusOK, collections)
}

func (s *server) getAccount(c *gin.Context) {
	buyer := c.Param("buyer")
	seller := c.Query("seller")
	asset := c.Query("asset")
	if !voucher.IsValidAddress(buyer) || !voucher.IsValidAddress(seller) || !voucher.IsValidAddress(asset) {
		c.JSON(http.StatusBadRequest, errBody("buyer, seller, and asset must be valid addresses"))
		return
	}
	snapshot, err := s.facilitator.GetEscrowAccountDetails(c.Request.Context(), buyer, seller, asset)
	if err != nil {
		s.log.Error("account query failed", zap.Error(err), zap.String("buyer", buyer))
		c.JSON(http.StatusBadGateway, errBody(err.Error()))
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

type flushRequest struct {
	FlushAuthorization voucher.FlushAuthorization `json:"flushAuthorization"`
	Escrow             string                     `json:"escrow"`
	ChainID            *voucher.BigInt            `json:"chainId"`
}

func (s *server) postFlush(c *gin.Context) {
	var req flushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errBody(err.Error()))
		return
	}
	if !voucher.AddressesEqual(req.Escrow, s.facilitator.EscrowAddr) {
		c.JSON(http.StatusBadRequest, errBody("escrow does not match this facilitator's deployment"))
		return
	}
	resp := s.facilitator.FlushWithAuthorization(c.Request.Context(), req.FlushAuthorization, req.ChainID, "eip155:"+req.ChainID.String(), nowFunc())
	s.log.Info("flush attempted", zap.Bool("success", resp.Success), zap.String("transaction", resp.Transaction))
	c.JSON(http.StatusOK, resp)
}
