package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ims-console-api/internal/models"
)

type ledgerStub struct {
	filter models.ConversionFilter
}

func (l *ledgerStub) Ledger(ctx context.Context, filter models.ConversionFilter) ([]models.ConversionRecord, *models.Pagination, error) {
	l.filter = filter
	return []models.ConversionRecord{{ID: "r1", EnquiryNo: "ENQ-0042", ReconcileStatus: models.ReconcileStatusFailed}},
		&models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func TestConversionHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ledger := &ledgerStub{}
	handler := NewConversionHandler(ledger)

	c, w := newGinContext(http.MethodGet, "/conversions?mode=client&reconcileStatus=failed&page=1&pageSize=20", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ConversionModeClient, ledger.filter.Mode)
	assert.Equal(t, models.ReconcileStatusFailed, ledger.filter.ReconcileStatus)
	assert.Equal(t, 20, ledger.filter.PageSize)
	assert.Contains(t, w.Body.String(), "ENQ-0042")
}
