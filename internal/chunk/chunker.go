package chunk

import (
	"path/filepath"
	"regexp"
	"strings"
)

// blockStartPatterns are the six language-family regexes used to recognize
// the start of a function/class/type block, grounded on the per-language
// regex tables in the original Rust symbol parser (fn/struct/trait for
// Rust, function/class/interface/type for TS-JS, def/class for Python,
// func/struct/interface for Go, plus a generic OOP family and a catch-all).
// Applied independently against the trimmed line; the first match wins.
var blockStartPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(export\s+)?(async\s+)?(function\s+\w+|const\s+\w+\s*=\s*(async\s+)?(\([^)]*\)|[^=])\s*=>|class\s+\w+|interface\s+\w+|type\s+\w+\s*=)`),
	regexp.MustCompile(`^(async\s+)?def\s+\w+|^class\s+\w+`),
	regexp.MustCompile(`^func\s+(\([^)]+\)\s+)?\w+`),
	regexp.MustCompile(`^(pub\s+)?(async\s+)?fn\s+\w+|^impl\s+`),
	regexp.MustCompile(`^(public|private|protected)?\s*(static\s+)?(async\s+)?(class|interface|void|int|string|bool|\w+)\s+\w+\s*[({]`),
	regexp.MustCompile(`^(def\s+\w+|class\s+\w+|module\s+\w+)`),
}

var lineCommentPrefixes = []string{"//", "#", "/*", "*", "--", "<!--"}

// Chunk splits content into line-bounded windows, trying the code-aware
// strategy first and falling back to a line-budget split only if the
// code-aware pass produced nothing. path is used only to tag each produced
// chunk with a best-guess language by extension; it has no bearing on the
// chunking algorithm itself.
func Chunk(content, path string, opts Options) []Window {
	opts = opts.withDefaults()
	if strings.TrimSpace(content) == "" {
		return nil
	}

	chunks := chunkCodeAware(content, opts)
	if len(chunks) == 0 {
		chunks = chunkLineFallback(content, opts)
	}

	lang := LanguageForPath(path)
	for i := range chunks {
		chunks[i].Language = lang
	}
	return chunks
}

// languagesByExt maps a lowercased file extension (with leading dot) to a
// display language name, grounded on the block-start regex families above:
// one entry per language family those patterns recognize, plus the common
// markup/config extensions whose lines normally match no block-start pattern
// and so are split by character budget in chunkCodeAware's non-block path.
var languagesByExt = map[string]string{
	".go":   "go",
	".rs":   "rust",
	".py":   "python",
	".ts":   "typescript",
	".tsx":  "typescript",
	".js":   "javascript",
	".jsx":  "javascript",
	".java": "java",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".hpp":  "cpp",
	".cs":   "csharp",
	".rb":   "ruby",
	".md":   "markdown",
	".json": "json",
	".yaml": "yaml",
	".yml":  "yaml",
	".toml": "toml",
	".sh":   "shell",
}

// LanguageForPath returns a best-guess language tag for path by extension,
// or "" if the extension is unrecognized.
func LanguageForPath(path string) string {
	return languagesByExt[strings.ToLower(filepath.Ext(path))]
}

// CountLines reports the number of lines in content per the data model's
// lineCount definition: a trailing newline terminates the last line rather
// than starting an empty one.
func CountLines(content string) int {
	if content == "" {
		return 0
	}
	return len(splitLines(content))
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	trimmed := content
	if strings.HasSuffix(trimmed, "\n") {
		trimmed = trimmed[:len(trimmed)-1]
	}
	return strings.Split(trimmed, "\n")
}

func leadingWhitespace(line string) int {
	n := 0
	for _, r := range line {
		if r == ' ' || r == '\t' {
			n++
			continue
		}
		break
	}
	return n
}

func isLineComment(trimmed string) bool {
	for _, prefix := range lineCommentPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

func matchesBlockStart(trimmed string) bool {
	for _, re := range blockStartPatterns {
		if re.MatchString(trimmed) {
			return true
		}
	}
	return false
}

func accLen(lines []string) int {
	n := 0
	for _, l := range lines {
		n += len(l) + 1
	}
	return n
}

// chunkCodeAware implements the §4.3 strategy 1 state machine: outside a
// block, lines accumulate as prose and a block-start line flushes that
// prose and opens a new block; inside a block, lines accumulate until a
// terminator line (closing token at or above the block's indent, or a
// dedent below it that isn't a comment) closes it.
func chunkCodeAware(content string, opts Options) []Window {
	lines := splitLines(content)
	var chunks []Window
	var acc []string
	accStart := 0
	inBlock := false
	blockStartIndent := 0

	flush := func(endIdx int) {
		if len(acc) == 0 {
			return
		}
		text := strings.Join(acc, "\n")
		if strings.TrimSpace(text) != "" {
			chunks = append(chunks, Window{
				Content:   text,
				LineStart: accStart + 1,
				LineEnd:   endIdx + 1,
			})
		}
		acc = nil
	}

	i := 0
	for i < len(lines) {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		if !inBlock {
			if trimmed != "" && matchesBlockStart(trimmed) {
				flush(i - 1)
				acc = []string{line}
				accStart = i
				inBlock = true
				blockStartIndent = leadingWhitespace(line)
				if accLen(acc) >= opts.ChunkSize {
					flush(i)
					inBlock = false
				}
				i++
				continue
			}

			if len(acc) == 0 {
				accStart = i
			}
			acc = append(acc, line)
			if accLen(acc) >= opts.ChunkSize {
				full := acc
				flush(i)
				acc = retainOverlap(full, opts.Overlap)
				if len(acc) > 0 {
					accStart = i - len(acc) + 1
					if accStart < 0 {
						accStart = 0
					}
				}
			}
			i++
			continue
		}

		// inBlock
		if trimmed == "" {
			acc = append(acc, line)
			if accLen(acc) >= opts.ChunkSize {
				flush(i)
				inBlock = false
			}
			i++
			continue
		}

		indent := leadingWhitespace(line)
		isCloser := trimmed == "}" || trimmed == "};" || trimmed == "end"

		if indent <= blockStartIndent && isCloser {
			acc = append(acc, line)
			flush(i)
			inBlock = false
			i++
			continue
		}
		if indent < blockStartIndent && !isLineComment(trimmed) {
			// Dedent without an explicit closer: the block ended on the
			// previous line. Flush without this line and reprocess it.
			flush(i - 1)
			inBlock = false
			continue
		}

		acc = append(acc, line)
		if accLen(acc) >= opts.ChunkSize {
			flush(i)
			inBlock = false
		}
		i++
	}
	flush(len(lines) - 1)
	return chunks
}

// chunkLineFallback implements §4.3 strategy 2: accumulate lines until the
// character budget is reached, flush, then retain a trailing overlap slice
// as the start of the next chunk.
func chunkLineFallback(content string, opts Options) []Window {
	lines := splitLines(content)
	var chunks []Window
	var acc []string
	accStart := 0

	flush := func(endIdx int) {
		if len(acc) == 0 {
			return
		}
		text := strings.Join(acc, "\n")
		if strings.TrimSpace(text) != "" {
			chunks = append(chunks, Window{
				Content:   text,
				LineStart: accStart + 1,
				LineEnd:   endIdx + 1,
			})
		}
	}

	for i, line := range lines {
		if len(acc) == 0 {
			accStart = i
		}
		acc = append(acc, line)

		if accLen(acc) >= opts.ChunkSize {
			flush(i)
			acc = retainOverlap(acc, opts.Overlap)
			accStart = i - len(acc) + 1
			if accStart < 0 {
				accStart = i + 1
			}
		}
	}
	flush(len(lines) - 1)
	return chunks
}

// retainOverlap keeps a trailing slice of lines worth approximately
// overlap characters, to seed the next chunk's accumulator.
func retainOverlap(lines []string, overlap int) []string {
	if overlap <= 0 {
		return nil
	}
	total := 0
	start := len(lines)
	for start > 0 {
		total += len(lines[start-1]) + 1
		if total >= overlap {
			break
		}
		start--
	}
	if start == len(lines) {
		return nil
	}
	kept := make([]string, len(lines)-start)
	copy(kept, lines[start:])
	return kept
}
