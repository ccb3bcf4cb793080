package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"bus-booking/internal/wallet"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type postingResponse struct {
	Wallet      wallet.Wallet      `json:"wallet"`
	Transaction wallet.Transaction `json:"transaction"`
}

func (h Handlers) GetWallet(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	w, err := h.Wallets.Get(c.Request.Context(), uid)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (h Handlers) Deposit(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "amount must be a decimal")
		return
	}
	w, entry, err := h.Wallets.AddFunds(c.Request.Context(), uid, req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, postingResponse{Wallet: w, Transaction: entry})
}

func (h Handlers) Withdraw(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "amount must be a decimal")
		return
	}
	w, entry, err := h.Wallets.Withdraw(c.Request.Context(), uid, req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, postingResponse{Wallet: w, Transaction: entry})
}

func (h Handlers) Transactions(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	f := wallet.HistoryFilter{Kind: wallet.Kind(strings.ToUpper(strings.TrimSpace(c.Query("kind"))))}
	var err error
	if f.Limit, err = intQuery(c, "limit"); err != nil {
		badRequest(c, "limit must be an integer")
		return
	}
	if f.Offset, err = intQuery(c, "offset"); err != nil {
		badRequest(c, "offset must be an integer")
		return
	}
	entries, err := h.Wallets.History(c.Request.Context(), uid, f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": entries})
}

func (h Handlers) WalletSummary(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	out, err := h.Reports.WalletSummary(c.Request.Context(), uid)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func intQuery(c *gin.Context, name string) (int, error) {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
