package scanning

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
	_ "golang.org/x/image/bmp"  // Register BMP decoder
	_ "golang.org/x/image/tiff" // Register TIFF decoder
	_ "golang.org/x/image/webp" // Register WEBP decoder
)

// reportScanPrompt is the shared prompt used by all LLM providers for scanning lab reports
const reportScanPrompt = `You are analyzing a medical laboratory report. The report may span several pages; every page image is attached in order. Extract EVERY test parameter on every page.

For the report as a whole extract:
1. **Patient**: name, age and gender as printed.
2. **Report Date**: the sample collection or report date, converted to ISO 8601 (YYYY-MM-DD).
3. **Lab Name**: the laboratory or hospital issuing the report.
4. **Doctors**: referring or signing doctor names.

For each test extract:
- **category**: the panel heading it appears under (e.g. "Complete Blood Count", "Lipid Profile"), or "" if none
- **test_name**: the test name exactly as printed (e.g. "Hemoglobin", "LDL Cholesterol", "HbA1c")
- **value**: the result as printed, kept as a string ("13.5", "1,250", "Positive")
- **unit**: the unit (e.g. "mg/dL", "g/dL", "%")
- **reference_range**: the reference interval as printed (e.g. "13.0-17.0", "<200")
- **status**: "Low", "Normal", "High" or "Unknown" by comparing the value to the reference range; follow explicit H/L markers when present
- **remarks**: any remark printed next to the result

Fix obvious OCR errors in numbers (5,5 -> 5.5, O.5 -> 0.5, l2.5 -> 12.5). Qualitative tests (Positive/Negative) must still be included.

Return ONLY valid JSON in this exact format:
{
  "patient_name": "",
  "age": "",
  "gender": "",
  "report_date": "YYYY-MM-DD",
  "lab_name": "",
  "doctor_names": [],
  "tests": [
    {"category": "", "test_name": "", "value": "", "unit": "", "reference_range": "", "status": "", "remarks": ""}
  ],
  "overall_summary": ""
}

Important:
- If a test appears more than once, keep the latest value only
- If you cannot find a field, use "" for that field
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// buildPrompt appends OCR text, when present, below the shared prompt
func buildPrompt(ocrText []string) string {
	if len(ocrText) == 0 {
		return reportScanPrompt
	}

	var b strings.Builder
	b.WriteString(reportScanPrompt)
	b.WriteString("\n\nOCR text of the report follows. It may contain recognition errors; prefer the images where they disagree.\n")
	for i, text := range ocrText {
		fmt.Fprintf(&b, "\n---PAGE %d---\n%s\n", i+1, strings.TrimSpace(text))
	}
	return b.String()
}

// pdfToImages renders up to maxPages pages of a PDF as PNG images
func pdfToImages(pdfData []byte, maxPages int) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	count := doc.NumPage()
	if count == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}
	if maxPages > 0 && count > maxPages {
		count = maxPages
	}

	pages := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		img, err := doc.Image(i)
		if err != nil {
			return nil, fmt.Errorf("rendering PDF page %d: %w", i+1, err)
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encoding PNG: %w", err)
		}
		pages = append(pages, buf.Bytes())
	}

	return pages, nil
}

// imageToPNG converts any image format to PNG
func imageToPNG(imageData []byte, mimeType string) ([]byte, error) {
	var img image.Image
	var err error

	// Go's standard image package doesn't support HEIC
	if isHEICFormat(imageData) || isHEICMimeType(mimeType) {
		img, err = heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(imageData))
		if err != nil {
			if strings.Contains(err.Error(), "unknown format") || strings.Contains(err.Error(), "unsupported") {
				return nil, fmt.Errorf("%w. Supported formats: JPEG, PNG, GIF, BMP, TIFF, WEBP, HEIC, HEIF, PDF: %v", ErrUnsupportedFormat, err)
			}
			return nil, fmt.Errorf("decoding image: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}

	return buf.Bytes(), nil
}

// isHEICFormat checks for the ftyp box with a HEIC brand at offset 4
func isHEICFormat(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	if string(data[4:8]) == "ftyp" {
		brand := string(data[8:12])
		if brand == "heic" || brand == "heif" || brand == "mif1" || brand == "msf1" {
			return true
		}
	}
	return false
}

// isHEICMimeType checks if the MIME type indicates HEIC/HEIF format
func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// preparePages normalizes the MIME type and converts the document to one PNG per page
func preparePages(data []byte, contentType string, maxPages int) ([][]byte, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	switch {
	case mimeType == "application/pdf":
		pages, err := pdfToImages(data, maxPages)
		if err != nil {
			return nil, fmt.Errorf("converting PDF to images: %w", err)
		}
		return pages, nil
	case mimeType == "image/png" && !isHEICFormat(data):
		return [][]byte{data}, nil
	default:
		page, err := imageToPNG(data, mimeType)
		if err != nil {
			return nil, fmt.Errorf("converting image to PNG: %w", err)
		}
		return [][]byte{page}, nil
	}
}

// prepareRequest renders the pages and builds the prompt, running OCR first when configured
func prepareRequest(ctx context.Context, o options, data []byte, contentType string) ([][]byte, string, error) {
	pages, err := preparePages(data, contentType, o.maxPages)
	if err != nil {
		return nil, "", err
	}

	var ocrText []string
	if o.ocr != nil {
		ocrText, err = o.ocr.ExtractText(ctx, pages)
		if err != nil {
			return nil, "", fmt.Errorf("extracting text: %w", err)
		}
	}

	return pages, buildPrompt(ocrText), nil
}
