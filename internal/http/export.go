package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/joeykb/smartescape-app/internal/models"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// historyExportHeader 历史导出表头
var historyExportHeader = []string{
	"ID",
	"System ID",
	"Timestamp",
	"Status",
	"Message",
	"Acknowledged",
	"Archived",
}

// ExportHistory 把历史归档导出为 Excel 文件
func (h *NotificationHandler) ExportHistory(w http.ResponseWriter, r *http.Request) {
	history := h.service.History(true)

	data, err := generateHistoryExcel(history)
	if err != nil {
		h.logger.Error("Failed to generate history export", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("failed to generate export"))
		return
	}

	filename := fmt.Sprintf("alert-history-%s.xlsx", time.Now().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// generateHistoryExcel 生成历史归档的 Excel 文件
func generateHistoryExcel(history []models.Notification) ([]byte, error) {
	f := excelize.NewFile()

	sheetName := "Alert History"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	// 删除默认的 Sheet1
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	// 表头
	for col, header := range historyExportHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header: %w", err)
		}
	}

	// 数据行
	for row, n := range history {
		values := []any{
			n.ID,
			n.SystemID,
			n.Timestamp.Format(time.RFC3339),
			string(n.Status),
			n.Message,
			n.IsRead,
			n.IsArchived,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell: %w", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write excel buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close excel file: %w", err)
	}

	return buf.Bytes(), nil
}
