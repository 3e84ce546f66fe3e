package ingest

import (
	"strings"
)

const (
	maxPlainTextBytes = 2 * 1024 * 1024
	maxPDFBytes       = 25 * 1024 * 1024
)

// ExtractText pulls retrievable text out of an attachment's bytes.
// Plain text and JSON pass through verbatim, PDFs go through a
// permissive heuristic parser, everything else yields no text and is
// skipped. The second return reports whether any extraction ran.
func ExtractText(data []byte, mimeType string) (string, bool) {
	mime := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}

	switch {
	case strings.HasPrefix(mime, "text/") || mime == "application/json":
		if len(data) > maxPlainTextBytes {
			return "", false
		}
		return string(data), true
	case mime == "application/pdf":
		if len(data) > maxPDFBytes {
			return "", false
		}
		return extractPDFText(data), true
	}
	return "", false
}

// extractPDFText scans raw PDF bytes for parenthesized string runs that
// look like text-show operands (Tj / TJ / ' / "). It never decompresses
// streams, so text inside compressed content is simply missed. Runs
// that are mostly non-printable (typical for binary streams) are
// dropped.
func extractPDFText(data []byte) string {
	var parts []string

	for i := 0; i < len(data); i++ {
		if data[i] != '(' {
			continue
		}

		run, end, ok := readParenRun(data, i)
		if !ok {
			continue
		}
		i = end

		if run != "" && printableRatio(run) >= 0.85 && followsShowOperator(data, end) {
			parts = append(parts, run)
		}
	}

	return strings.Join(parts, " ")
}

// readParenRun decodes one PDF literal string starting at the opening
// paren, handling nesting, escapes and octal codes. Returns the decoded
// text and the index of the closing paren.
func readParenRun(data []byte, start int) (string, int, bool) {
	var sb strings.Builder
	depth := 0

	for i := start; i < len(data); i++ {
		c := data[i]
		switch c {
		case '\\':
			if i+1 >= len(data) {
				return "", 0, false
			}
			i++
			switch next := data[i]; next {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r', 'f', 'b':
				sb.WriteByte(' ')
			case '(', ')', '\\':
				sb.WriteByte(next)
			default:
				if next >= '0' && next <= '7' {
					code := int(next - '0')
					for j := 0; j < 2 && i+1 < len(data) && data[i+1] >= '0' && data[i+1] <= '7'; j++ {
						i++
						code = code*8 + int(data[i]-'0')
					}
					if code >= 32 && code < 127 {
						sb.WriteByte(byte(code))
					}
				}
			}
		case '(':
			if depth > 0 {
				sb.WriteByte(c)
			}
			depth++
		case ')':
			depth--
			if depth == 0 {
				return sb.String(), i, true
			}
			sb.WriteByte(c)
		default:
			sb.WriteByte(c)
		}

		// Unterminated strings in damaged files: bail out past 64KB.
		if sb.Len() > 64*1024 {
			return "", 0, false
		}
	}
	return "", 0, false
}

// followsShowOperator checks whether a text-show operator appears
// shortly after the closing paren, which is how real page text is drawn.
// TJ arrays close with ']' before the operator, so a small lookahead
// window covers both forms.
func followsShowOperator(data []byte, closeParen int) bool {
	end := closeParen + 16
	if end > len(data) {
		end = len(data)
	}
	window := string(data[closeParen+1 : end])
	return strings.Contains(window, "Tj") ||
		strings.Contains(window, "TJ") ||
		strings.Contains(window, "'") ||
		strings.Contains(window, "\"")
}

func printableRatio(s string) float64 {
	if s == "" {
		return 0
	}
	printable := 0
	for _, r := range s {
		if r == '\n' || r == '\t' || (r >= 32 && r != 127) {
			printable++
		}
	}
	return float64(printable) / float64(len([]rune(s)))
}
