package api

import (
	"encoding/csv"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/yourorg/guest-provisioner/internal/models"
	"github.com/yourorg/guest-provisioner/internal/record"
	"github.com/yourorg/guest-provisioner/internal/storage"
)

// UploadHandler stages the two intake resources: the master pool of
// candidate emails and the operator credential records.
type UploadHandler struct {
	db         *gorm.DB
	store      storage.ObjectStore
	poolURI    string
	recordsURI string
}

func NewUploadHandler(db *gorm.DB, store storage.ObjectStore, poolURI, recordsURI string) *UploadHandler {
	return &UploadHandler{db: db, store: store, poolURI: poolURI, recordsURI: recordsURI}
}

type uploadRequest struct {
	Kind       string `form:"kind" binding:"required"` // pool | operators
	UploadedBy string `form:"uploaded_by" binding:"required"`
}

func (h *UploadHandler) UploadFile(c *gin.Context) {
	var req uploadRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Kind != "pool" && req.Kind != "operators" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be pool or operators"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file upload error: " + err.Error()})
		return
	}
	defer file.Close()

	rows, err := parseUpload(header.Filename, file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file parsing error: " + err.Error()})
		return
	}

	var lines []string
	skipped := 0
	dest := h.poolURI
	switch req.Kind {
	case "pool":
		for _, row := range rows {
			if v := strings.TrimSpace(firstCell(row)); v != "" {
				lines = append(lines, v)
			}
		}
	case "operators":
		dest = h.recordsURI
		// Only lines that parse as operator records make it into the staged
		// copy; the derivative lists are built from the same pass.
		var users, group []string
		for _, row := range rows {
			line := strings.Join(row, "\t")
			if strings.TrimSpace(line) == "" {
				continue
			}
			op, err := record.Parse(line)
			if err != nil {
				skipped++
				continue
			}
			lines = append(lines, line)
			users = append(users, op.Email)
			group = append(group, op.Email+"\t"+op.Password)
		}
		if len(lines) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no valid operator records in file"})
			return
		}
		if err := h.putLines(c, siblingURI(dest, "users.txt"), users); err != nil {
			return
		}
		if err := h.putLines(c, siblingURI(dest, "group.txt"), group); err != nil {
			return
		}
	}
	if len(lines) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "uploaded file is empty"})
		return
	}

	body := strings.NewReader(strings.Join(lines, "\n") + "\n")
	uri, err := h.store.Put(c.Request.Context(), dest, body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store error: " + err.Error()})
		return
	}

	intake := models.IntakeFile{
		Kind:       req.Kind,
		URI:        uri,
		Lines:      len(lines),
		Skipped:    skipped,
		UploadedBy: req.UploadedBy,
	}
	if err := h.db.Create(&intake).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"uri":     uri,
		"lines":   len(lines),
		"skipped": skipped,
	})
}

// putLines stores a derivative staged list; on failure it writes the error
// response and reports it so the caller can bail out.
func (h *UploadHandler) putLines(c *gin.Context, uri string, lines []string) error {
	_, err := h.store.Put(c.Request.Context(), uri, strings.NewReader(strings.Join(lines, "\n")+"\n"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store error: " + err.Error()})
	}
	return err
}

// siblingURI replaces the last path element of a URI with name.
func siblingURI(uri, name string) string {
	if i := strings.LastIndex(uri, "/"); i >= 0 {
		return uri[:i+1] + name
	}
	return name
}

// parseUpload turns a .txt, .csv, .tsv, or .xlsx upload into rows of cells.
func parseUpload(filename string, r io.Reader) ([][]string, error) {
	switch {
	case strings.HasSuffix(filename, ".csv"):
		return parseSeparated(r, ',')
	case strings.HasSuffix(filename, ".tsv"):
		return parseSeparated(r, '\t')
	case strings.HasSuffix(filename, ".xlsx"):
		return parseExcel(r)
	default:
		return parsePlain(r)
	}
}

func parsePlain(r io.Reader) ([][]string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var rows [][]string
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, strings.Fields(line))
	}
	return rows, nil
}

func parseSeparated(r io.Reader, comma rune) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	return cr.ReadAll()
}

func parseExcel(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	return f.GetRows(sheets[0])
}

func firstCell(row []string) string {
	if len(row) == 0 {
		return ""
	}
	return row[0]
}
