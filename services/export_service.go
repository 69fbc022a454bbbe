package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"document-archive-platform/internal/store"
	"document-archive-platform/models"
)

const exportPageSize = 500

// ExportService builds spreadsheet exports of the article catalog.
type ExportService struct {
	catalog store.Catalog
}

func NewExportService(catalog store.Catalog) *ExportService {
	return &ExportService{catalog: catalog}
}

// ArticlesWorkbook collects every article matching the filter and lays
// them out on one sheet. The caller owns the returned file and must
// Close it.
func (es *ExportService) ArticlesWorkbook(ctx context.Context, filter store.ArticleFilter) (*excelize.File, int, error) {
	var articles []models.Article
	offset := 0
	for {
		total, page, err := es.catalog.ListArticles(ctx, filter, store.Page{Limit: exportPageSize, Offset: offset})
		if err != nil {
			return nil, 0, fmt.Errorf("failed to list articles: %w", err)
		}
		articles = append(articles, page...)
		offset += len(page)
		if len(page) == 0 || int64(offset) >= total {
			break
		}
	}

	f := excelize.NewFile()
	sheetName := "Articles"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headers := []string{
		"ID", "Title", "Document", "Year", "Categories", "Keywords", "Pages", "Summary", "Created At",
	}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIdx, article := range articles {
		row := rowIdx + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), article.ID.Hex())
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), article.Title)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), article.DocumentName)
		if article.PublicationYear != 0 {
			f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), article.PublicationYear)
		}
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), strings.Join(article.Categories, ", "))
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), strings.Join(article.Keywords, ", "))
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), pageRangeLabel(article.PageStart, article.PageEnd))
		f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), article.Summary)
		f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), article.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	for col := 'A'; col <= 'I'; col++ {
		f.SetColWidth(sheetName, string(col), string(col), 18)
	}

	return f, len(articles), nil
}

func pageRangeLabel(start, end *int) string {
	switch {
	case start == nil && end == nil:
		return ""
	case end == nil:
		return strconv.Itoa(*start)
	case start == nil:
		return strconv.Itoa(*end)
	default:
		return fmt.Sprintf("%d-%d", *start, *end)
	}
}
