package bundle

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"

	"github.com/ngld/knossos/packages/client-build/pkg"
)

// PurgeOutputs removes CSS rules that none of the files matched by the given
// patterns reference and overwrites each stylesheet with the smaller result.
func PurgeOutputs(ctx context.Context, projectRoot string, cssFiles []string, patterns []string) error {
	if len(cssFiles) == 0 {
		return nil
	}

	pkg.PrintTask("Removing unused CSS")
	contentFiles, err := resolvePatterns(projectRoot, patterns)
	if err != nil {
		return err
	}

	if len(contentFiles) == 0 {
		pkg.Log(ctx).Warn().Msg("No content files matched; skipping unused CSS removal")
		return nil
	}

	used, err := UsedTokens(contentFiles)
	if err != nil {
		return err
	}

	for _, file := range cssFiles {
		data, err := os.ReadFile(file)
		if err != nil {
			return eris.Wrapf(err, "Failed to read %s", file)
		}

		purged := PurgeCSS(data, used)
		err = os.WriteFile(file, purged, os.FileMode(0660))
		if err != nil {
			return eris.Wrapf(err, "Failed to write %s", file)
		}

		rel, err := filepath.Rel(projectRoot, file)
		if err != nil {
			rel = file
		}
		pkg.PrintSubtask(fmt.Sprintf("%s (%s -> %s)", rel, formatSize(len(data)), formatSize(len(purged))))
	}

	return nil
}

// resolvePatterns expands globstar patterns relative to the project root
func resolvePatterns(projectRoot string, patterns []string) ([]string, error) {
	result := []string{}
	cfg := expand.Config{
		ReadDir:  shellReadDir,
		GlobStar: true,
	}

	parser := syntax.NewParser()
	for _, item := range patterns {
		item = filepath.ToSlash(filepath.Join(projectRoot, item))

		words := make([]*syntax.Word, 0)
		err := parser.Words(strings.NewReader(item), func(w *syntax.Word) bool {
			words = append(words, w)
			return true
		})
		if err != nil {
			return nil, eris.Wrapf(err, "Failed to parse pattern %s", item)
		}

		matches, err := expand.Fields(&cfg, words...)
		if err != nil {
			return nil, eris.Wrapf(err, "Failed to resolve pattern %s", item)
		}

		for _, match := range matches {
			// unmatched patterns are returned verbatim; skip those
			if !strings.Contains(match, "*") {
				result = append(result, match)
			}
		}
	}
	return result, nil
}

func shellReadDir(path string) ([]fs.FileInfo, error) {
	if path == "" {
		path = "."
	}

	items, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	infos := make([]fs.FileInfo, 0, len(items))
	for _, item := range items {
		info, err := item.Info()
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

var wordPattern = regexp.MustCompile(`[A-Za-z0-9_-]+`)

// UsedTokens collects every identifier-like word from the given files. This
// deliberately over-matches (any word in a comment counts as "used"); wrongly
// keeping a rule is harmless, wrongly dropping one breaks the UI.
func UsedTokens(files []string) (map[string]bool, error) {
	used := map[string]bool{}
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, eris.Wrapf(err, "Failed to read %s", file)
		}

		for _, word := range wordPattern.FindAll(data, -1) {
			used[string(word)] = true
		}
	}
	return used, nil
}

type cssToken struct {
	tt   css.TokenType
	data []byte
}

// at-rules whose block contains further rules instead of declarations
var nestedAtRules = map[string]bool{
	"@media":     true,
	"@supports":  true,
	"@layer":     true,
	"@container": true,
	"@scope":     true,
}

// PurgeCSS drops every ruleset whose selectors only mention classes and ids
// that don't appear in the used set. Selector lists are filtered per
// selector; at-rules like @media are processed recursively and removed when
// they end up empty. @font-face, @keyframes and friends are kept untouched.
func PurgeCSS(sheet []byte, used map[string]bool) []byte {
	lexer := css.NewLexer(parse.NewInputBytes(sheet))
	var out bytes.Buffer
	purgeRules(lexer, used, &out)
	return out.Bytes()
}

func purgeRules(lexer *css.Lexer, used map[string]bool, out *bytes.Buffer) {
	var prelude []cssToken

	for {
		tt, data := lexer.Next()
		switch tt {
		case css.ErrorToken:
			// EOF or malformed input; everything parsed so far is kept
			return
		case css.RightBraceToken:
			return
		case css.CommentToken:
			// comments between rules carry no selector information
		case css.SemicolonToken:
			// block-less at-rule (@charset, @import, ...)
			if text := preludeText(prelude); text != "" {
				out.WriteString(text)
				out.WriteByte(';')
			}
			prelude = nil
		case css.LeftBraceToken:
			if len(prelude) > 0 && prelude[0].tt == css.AtKeywordToken {
				name := strings.ToLower(string(prelude[0].data))
				if nestedAtRules[name] {
					var inner bytes.Buffer
					purgeRules(lexer, used, &inner)
					if inner.Len() > 0 {
						out.WriteString(preludeText(prelude))
						out.WriteByte('{')
						out.Write(inner.Bytes())
						out.WriteByte('}')
					}
				} else {
					body := rawBlock(lexer)
					out.WriteString(preludeText(prelude))
					out.WriteByte('{')
					out.Write(body)
					out.WriteByte('}')
				}
			} else {
				body := rawBlock(lexer)
				if kept := filterSelectors(prelude, used); kept != "" {
					out.WriteString(kept)
					out.WriteByte('{')
					out.Write(body)
					out.WriteByte('}')
				}
			}
			prelude = nil
		default:
			prelude = append(prelude, cssToken{tt, data})
		}
	}
}

// rawBlock returns the raw contents of the current block, brace-balanced so
// nested blocks (keyframe steps for example) stay intact
func rawBlock(lexer *css.Lexer) []byte {
	var buf bytes.Buffer
	depth := 1

	for {
		tt, data := lexer.Next()
		switch tt {
		case css.ErrorToken:
			return buf.Bytes()
		case css.LeftBraceToken:
			depth++
		case css.RightBraceToken:
			depth--
			if depth == 0 {
				return buf.Bytes()
			}
		}
		buf.Write(data)
	}
}

func preludeText(prelude []cssToken) string {
	var buf bytes.Buffer
	for _, token := range prelude {
		if token.tt == css.WhitespaceToken {
			if buf.Len() > 0 {
				buf.WriteByte(' ')
			}
			continue
		}
		buf.Write(token.data)
	}
	return strings.TrimRight(buf.String(), " ")
}

// filterSelectors splits a selector list on top-level commas and keeps the
// selectors whose classes and ids all appear in the used set
func filterSelectors(prelude []cssToken, used map[string]bool) string {
	var kept []string
	var current []cssToken
	depth := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		if selectorUsed(current, used) {
			if text := preludeText(current); text != "" {
				kept = append(kept, text)
			}
		}
		current = nil
	}

	for _, token := range prelude {
		switch token.tt {
		case css.LeftParenthesisToken, css.LeftBracketToken, css.FunctionToken:
			depth++
		case css.RightParenthesisToken, css.RightBracketToken:
			depth--
		case css.CommaToken:
			if depth == 0 {
				flush()
				continue
			}
		}
		current = append(current, token)
	}
	flush()

	return strings.Join(kept, ",")
}

// selectorUsed reports whether every class and id the selector names is
// referenced somewhere. Element and attribute selectors never disqualify a
// rule and neither does anything inside parentheses (:not() and friends).
func selectorUsed(tokens []cssToken, used map[string]bool) bool {
	depth := 0
	for idx, token := range tokens {
		switch token.tt {
		case css.LeftParenthesisToken, css.LeftBracketToken, css.FunctionToken:
			depth++
		case css.RightParenthesisToken, css.RightBracketToken:
			depth--
		case css.HashToken:
			if depth == 0 && !used[string(token.data[1:])] {
				return false
			}
		case css.DelimToken:
			if depth == 0 && len(token.data) == 1 && token.data[0] == '.' &&
				idx+1 < len(tokens) && tokens[idx+1].tt == css.IdentToken {
				if !used[string(tokens[idx+1].data)] {
					return false
				}
			}
		}
	}
	return true
}
