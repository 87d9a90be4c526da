package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spendtrack/spendtrack/internal/cache"
	"github.com/spendtrack/spendtrack/internal/config"
	"github.com/spendtrack/spendtrack/internal/domain/expense"
	"github.com/spendtrack/spendtrack/internal/http/middlewares"
)

type ExpenseStore interface {
	ListByUser(ctx context.Context, userID int64) ([]expense.Expense, error)
	Create(ctx context.Context, userID int64, req expense.CreateExpenseRequest) (expense.Expense, error)
	Delete(ctx context.Context, id, userID int64) error
}

type ExpensesHandler struct {
	repo  ExpenseStore
	cache *cache.ListCache
}

func NewExpensesHandler(repo ExpenseStore, listCache *cache.ListCache) *ExpensesHandler {
	return &ExpensesHandler{
		repo:  repo,
		cache: listCache,
	}
}

// List returns the caller's expenses, newest date first.
func (h *ExpensesHandler) List(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "no_token", "Missing identity")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	if items, hit := h.cache.GetExpenses(cctx, userID); hit {
		RespondJSONWithETag(ctx, http.StatusOK, items)
		return
	}

	items, err := h.repo.ListByUser(cctx, userID)

	if err != nil {
		RespondInternal(ctx, "Could not list expenses")
		return
	}

	h.cache.SetExpenses(cctx, userID, items)

	RespondJSONWithETag(ctx, http.StatusOK, items)
}

func (h *ExpensesHandler) Create(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "no_token", "Missing identity")
		return
	}

	var req expense.CreateExpenseRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	created, err := h.repo.Create(cctx, userID, req)

	if err != nil {
		RespondInternal(ctx, "Could not add expense")
		return
	}

	h.cache.Invalidate(cctx, userID)

	ctx.JSON(http.StatusCreated, created)
}

// Delete removes one of the caller's expenses. Someone else's row answers
// 403 rather than silently doing nothing.
func (h *ExpensesHandler) Delete(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "no_token", "Missing identity")
		return
	}

	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)

	if err != nil || id <= 0 {
		RespondBadRequest(ctx, "invalid_id", "expense id must be a positive integer", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	err = h.repo.Delete(cctx, id, userID)

	if err != nil {
		switch {
		case errors.Is(err, expense.ErrNotFound):
			RespondNotFound(ctx, "Expense not found")
		case errors.Is(err, expense.ErrNotOwner):
			RespondForbidden(ctx, "not_owner", "You can only delete your own expenses")
		default:
			RespondInternal(ctx, "Could not delete expense")
		}
		return
	}

	h.cache.Invalidate(cctx, userID)

	ctx.Status(http.StatusNoContent)
}
