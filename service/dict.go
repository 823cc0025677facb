package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/acadmcp/acadmcp/acad"
	"github.com/acadmcp/acadmcp/stream"
)

// markerJSON is the line prefix the embedded LISP library uses to hand a
// JSON payload back through the transcript. One marker per line.
const markerJSON = "[MCP:JSON]"

// dictLispLib defines, once per drawing session, the AutoLISP helpers the
// dictionary tools call. Every helper reports through a single
// [MCP:JSON]{...} line so results survive the transcript round trip.
const dictLispLib = `(progn
  (if (not (fboundp 'mcp--emit-json))
    (progn
      (defun mcp--json-escape (s / i c out)
        (setq out "" i 1)
        (while (<= i (strlen s))
          (setq c (substr s i 1))
          (cond
            ((= c "\\") (setq out (strcat out "\\\\")))
            ((= c "\"") (setq out (strcat out "\\\"")))
            (T (setq out (strcat out c))))
          (setq i (+ i 1)))
        out)
      (defun mcp--json-quote (s) (strcat "\"" (mcp--json-escape s) "\""))
      (defun mcp--json-real (r)
        (vl-string-right-trim "." (vl-string-right-trim "0" (rtos r 2 15))))
      (defun mcp--json-value (v)
        (cond
          ((= v T) "true")
          ((= v nil) "false")
          ((and (= (type v) 'SYM) (= (strcase (vl-symbol-name v)) "MCPNULL")) "null")
          ((= (type v) 'STR) (mcp--json-quote v))
          ((= (type v) 'INT) (itoa v))
          ((= (type v) 'REAL) (mcp--json-real v))
          ((= (type v) 'LIST) (mcp--json-arr v))
          (T (mcp--json-quote (vl-princ-to-string v)))))
      (defun mcp--json-arr (lst / out first)
        (setq out "[" first T)
        (foreach v lst
          (if first (setq first nil) (setq out (strcat out ",")))
          (setq out (strcat out (mcp--json-value v))))
        (strcat out "]"))
      (defun mcp--emit-json (json)
        (prompt (strcat "\n" "[MCP:JSON]" json))
        (princ))
      (defun mcp--emit-err (msg)
        (mcp--emit-json (strcat "{\"ok\":false,\"error\":" (mcp--json-value msg) "}")))
      (defun mcp--nod () (namedobjdict))
      (defun mcp--is-system-name (name / u)
        (setq u (strcase name))
        (or (wcmatch u "ACAD_*") (wcmatch u "AEC_*") (wcmatch u "ADSK_*") (wcmatch u "A$*")))
      (defun mcp--dict-by-name (name / r)
        (setq r (dictsearch (mcp--nod) name))
        (if (and r (= (cdr (assoc 0 r)) "DICTIONARY")) (cdr (assoc -1 r)) nil))
      (defun mcp--dict-entry-pairs (d / el out key)
        (setq el (entget d) out nil)
        (while el
          (if (= (caar el) 3)
            (progn
              (setq key (cdar el) el (cdr el))
              (while (and el (/= (caar el) 350)) (setq el (cdr el)))
              (if el (setq out (cons (cons key (cdar el)) out) el (cdr el))))
            (setq el (cdr el))))
        (reverse out))
      (defun mcp--ensure-dict (name / d)
        (setq d (mcp--dict-by-name name))
        (if d d
          (progn
            (setq d (entmakex (list (cons 0 "DICTIONARY") (cons 100 "AcDbDictionary"))))
            (dictadd (mcp--nod) name d)
            d)))
      (defun mcp--xrec-by-key (d key / r)
        (setq r (dictsearch d key))
        (if (and r (= (cdr (assoc 0 r)) "XRECORD")) (cdr (assoc -1 r)) nil))
      (defun mcp--xrec-read (e / out)
        (setq out nil)
        (foreach p (entget e)
          (if (and (numberp (car p)) (>= (car p) 1)
                   (/= (car p) 5) (/= (car p) 100) (/= (car p) 102)
                   (/= (car p) 280) (/= (car p) 330) (/= (car p) 360))
            (setq out (cons p out))))
        (reverse out))
      (defun mcp--json-xrec-values (pairs / out first)
        (setq out "[" first T)
        (foreach p pairs
          (if first (setq first nil) (setq out (strcat out ",")))
          (setq out (strcat out "[" (itoa (car p)) "," (mcp--json-value (cdr p)) "]")))
        (strcat out "]"))
      (defun mcp-dict-list (/ out first name obj isSys)
        (setq out "[" first T)
        (foreach kv (mcp--dict-entry-pairs (mcp--nod))
          (setq name (car kv) obj (cdr kv))
          (if (and obj (= (cdr (assoc 0 (entget obj))) "DICTIONARY"))
            (progn
              (setq isSys (mcp--is-system-name name))
              (if first (setq first nil) (setq out (strcat out ",")))
              (setq out (strcat out
                "{\"name\":" (mcp--json-value name)
                ",\"is_system_guess\":" (mcp--json-value isSys)
                ",\"system_reason\":" (mcp--json-value (if isSys "prefix" 'MCPNULL)) "}")))))
        (mcp--emit-json (strcat "{\"ok\":true,\"dicts\":" out "]}")))
      (defun mcp-dict-keys (dictName / d entries keys first k obj etype)
        (setq d (mcp--dict-by-name dictName))
        (if (not d)
          (mcp--emit-json "{\"ok\":true,\"found\":false,\"keys\":[],\"entries\":[]}")
          (progn
            (setq entries "[" keys "[" first T)
            (foreach kv (mcp--dict-entry-pairs d)
              (setq k (car kv) obj (cdr kv))
              (setq etype (if obj (cdr (assoc 0 (entget obj))) 'MCPNULL))
              (if first (setq first nil)
                (setq entries (strcat entries ",") keys (strcat keys ",")))
              (setq entries (strcat entries "{\"key\":" (mcp--json-value k) ",\"type\":" (mcp--json-value etype) "}"))
              (setq keys (strcat keys (mcp--json-value k))))
            (mcp--emit-json (strcat "{\"ok\":true,\"found\":true,\"keys\":" keys "],\"entries\":" entries "]}")))))
      (defun mcp-xrecord-get (dictName key / d x)
        (setq d (mcp--dict-by-name dictName))
        (setq x (if d (mcp--xrec-by-key d key) nil))
        (if (not x)
          (mcp--emit-json "{\"ok\":true,\"found\":false,\"values\":[]}")
          (mcp--emit-json (strcat "{\"ok\":true,\"found\":true,\"values\":"
                                  (mcp--json-xrec-values (mcp--xrec-read x)) "}"))))
      (defun mcp-xrecord-set (dictName key values overwrite / d old xrec)
        (setq d (mcp--ensure-dict dictName))
        (setq old (mcp--xrec-by-key d key))
        (if old
          (if overwrite
            (progn (dictremove d key) (entdel old))
            (progn (mcp--emit-err "Key already exists") (setq d nil))))
        (if d
          (progn
            (setq xrec (entmakex (append (list (cons 0 "XRECORD") (cons 100 "AcDbXrecord")) values)))
            (dictadd d key xrec)
            (mcp--emit-json "{\"ok\":true,\"written\":true}"))))
      (defun mcp-xrecord-delete (dictName key / d old)
        (setq d (mcp--dict-by-name dictName))
        (setq old (if d (mcp--xrec-by-key d key) nil))
        (if (not old)
          (mcp--emit-json "{\"ok\":true,\"deleted\":false}")
          (progn
            (dictremove d key)
            (entdel old)
            (mcp--emit-json "{\"ok\":true,\"deleted\":true}"))))
      (defun mcp-dict-delete (dictName recursive / d it k obj n)
        (setq d (mcp--dict-by-name dictName))
        (if (not d)
          (mcp--emit-json "{\"ok\":true,\"deleted\":false,\"deleted_entries\":0}")
          (progn
            (setq n 0 it (mcp--dict-entry-pairs d))
            (if (and (not recursive) it)
              (progn (mcp--emit-err "Dictionary not empty (set recursive=true to delete)") (setq d nil)))
            (if d
              (progn
                (foreach kv it
                  (setq k (car kv) obj (cdr kv))
                  (if k (dictremove d k))
                  (if obj (entdel obj))
                  (setq n (+ n 1)))
                (dictremove (mcp--nod) dictName)
                (entdel d)
                (mcp--emit-json (strcat "{\"ok\":true,\"deleted\":true,\"deleted_entries\":" (itoa n) "}")))))))
    )))`

// extractMarkerJSON parses the last [MCP:JSON] line from transcript text.
func extractMarkerJSON(text string) (map[string]interface{}, error) {
	if text == "" {
		return nil, fmt.Errorf("no output text to parse")
	}
	var lastLine string
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, markerJSON) {
			lastLine = line
		}
	}
	if lastLine == "" {
		return nil, fmt.Errorf("marker %v not found in output", markerJSON)
	}
	payload := strings.TrimSpace(lastLine[strings.LastIndex(lastLine, markerJSON)+len(markerJSON):])
	if payload == "" {
		return nil, fmt.Errorf("marker present but payload is empty")
	}
	var object map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &object); err != nil {
		return nil, fmt.Errorf("parse marker payload: %w", err)
	}
	return object, nil
}

// lispString renders a quoted AutoLISP string literal.
func lispString(s string) string {
	return `"` + acad.QuoteString(s) + `"`
}

// DictValue is one typed xrecord entry: a DXF group code plus its value.
type DictValue struct {
	Code  int         `json:"code"`
	Value interface{} `json:"value"`
}

// lispTypedValues converts DictValue entries into a LISP list of dotted
// pairs ready for entmakex.
func lispTypedValues(values []DictValue) (string, error) {
	if len(values) == 0 {
		return "'()", nil
	}
	var parts []string
	for i, item := range values {
		var rendered string
		switch value := item.Value.(type) {
		case string:
			rendered = lispString(value)
		case bool:
			if value {
				rendered = "T"
			} else {
				rendered = "nil"
			}
		case float64:
			rendered = fmt.Sprint(value)
		case int:
			rendered = fmt.Sprint(value)
		case []interface{}:
			// Point or number list.
			var nums []string
			for j, n := range value {
				number, ok := n.(float64)
				if !ok {
					return "", fmt.Errorf("values[%d].value[%d] must be a number", i, j)
				}
				nums = append(nums, fmt.Sprint(number))
			}
			rendered = "'(" + strings.Join(nums, " ") + ")"
		case nil:
			rendered = "nil"
		default:
			return "", fmt.Errorf("values[%d].value has unsupported type %T", i, item.Value)
		}
		parts = append(parts, fmt.Sprintf("(cons %d %s)", item.Code, rendered))
	}
	return "(list " + strings.Join(parts, " ") + ")", nil
}

// runLispJSON evaluates an expression that prints one [MCP:JSON] line and
// returns the decoded payload. A temporary logfile stream is started when
// the session has none, and torn down again afterwards.
func (s *Service) runLispJSON(ctx context.Context, expr string, timeoutSec float64) (map[string]interface{}, error) {
	var tempStreamID string
	if defaultStream := s.streams.Default(); defaultStream == nil || defaultStream.Mode != stream.ModeLogfile {
		started, err := s.StartLogging(ctx, &StartLoggingInput{Mode: string(stream.ModeLogfile)})
		if err != nil {
			return nil, err
		}
		tempStreamID = started.StreamID
		defer func() {
			_, _ = s.StopLogging(ctx, &StopLoggingInput{StreamID: tempStreamID})
		}()
	}

	result, err := s.RunLisp(ctx, &RunLispInput{Expr: expr, TimeoutSec: &timeoutSec})
	if err != nil {
		return nil, err
	}
	var text string
	if result.Log != nil {
		text = result.Log.Text
	}
	object, err := extractMarkerJSON(text)
	if err != nil {
		// The returned chunk may not include the marker yet; fall back to
		// the transcript tail.
		tail, tailErr := s.LastOutput(ctx, &LastOutputInput{Source: "logfile"})
		if tailErr != nil {
			return nil, err
		}
		if object, err = extractMarkerJSON(tail.Text); err != nil {
			return nil, err
		}
	}
	if ok, isBool := object["ok"].(bool); isBool && !ok {
		message := "unknown AutoLISP error"
		if errText, has := object["error"].(string); has && errText != "" {
			message = errText
		}
		return nil, fmt.Errorf("%s", message)
	}
	delete(object, "ok")
	return object, nil
}

// remarshal converts a decoded JSON object into a typed result.
func remarshal(object map[string]interface{}, out interface{}) error {
	data, err := json.Marshal(object)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// DictEntry is one named dictionary in the drawing's named objects
// dictionary.
type DictEntry struct {
	Name          string      `json:"name"`
	IsSystemGuess bool        `json:"is_system_guess"`
	SystemReason  interface{} `json:"system_reason"`
}

// DictListResult lists top-level dictionaries.
type DictListResult struct {
	Dicts []DictEntry `json:"dicts"`
}

// DictList implements the dict_list tool.
func (s *Service) DictList(ctx context.Context) (*DictListResult, error) {
	object, err := s.runLispJSON(ctx, dictLispLib+"\n(mcp-dict-list)\n", defaultTimeoutSec)
	if err != nil {
		return nil, err
	}
	result := &DictListResult{}
	return result, remarshal(object, result)
}

// DictNameInput names a dictionary.
type DictNameInput struct {
	DictName string `json:"dict_name"`
}

// DictKeysResult lists keys and entry types of one dictionary.
type DictKeysResult struct {
	Found   bool                     `json:"found"`
	Keys    []string                 `json:"keys"`
	Entries []map[string]interface{} `json:"entries"`
}

// DictKeys implements the dict_keys tool.
func (s *Service) DictKeys(ctx context.Context, input *DictNameInput) (*DictKeysResult, error) {
	if input.DictName == "" {
		return nil, fmt.Errorf("dict_name must be non-empty")
	}
	expr := dictLispLib + fmt.Sprintf("\n(mcp-dict-keys %s)\n", lispString(input.DictName))
	object, err := s.runLispJSON(ctx, expr, defaultTimeoutSec)
	if err != nil {
		return nil, err
	}
	result := &DictKeysResult{}
	return result, remarshal(object, result)
}

// XrecordKeyInput addresses one xrecord within a dictionary.
type XrecordKeyInput struct {
	DictName string `json:"dict_name"`
	Key      string `json:"key"`
}

// XrecordGetResult carries xrecord data as [code, value] pairs.
type XrecordGetResult struct {
	Found  bool            `json:"found"`
	Values [][]interface{} `json:"values"`
}

// DictXrecordGet implements the dict_xrecord_get tool.
func (s *Service) DictXrecordGet(ctx context.Context, input *XrecordKeyInput) (*XrecordGetResult, error) {
	if input.DictName == "" || input.Key == "" {
		return nil, fmt.Errorf("dict_name and key must be non-empty")
	}
	expr := dictLispLib + fmt.Sprintf("\n(mcp-xrecord-get %s %s)\n", lispString(input.DictName), lispString(input.Key))
	object, err := s.runLispJSON(ctx, expr, defaultTimeoutSec)
	if err != nil {
		return nil, err
	}
	result := &XrecordGetResult{}
	return result, remarshal(object, result)
}

// XrecordSetInput writes typed values under a dictionary key.
type XrecordSetInput struct {
	DictName  string      `json:"dict_name"`
	Key       string      `json:"key"`
	Values    []DictValue `json:"values"`
	Overwrite *bool       `json:"overwrite,omitempty"`
}

// XrecordSetResult reports a completed write.
type XrecordSetResult struct {
	Written bool `json:"written"`
}

// DictXrecordSet implements the dict_xrecord_set tool.
func (s *Service) DictXrecordSet(ctx context.Context, input *XrecordSetInput) (*XrecordSetResult, error) {
	if input.DictName == "" || input.Key == "" {
		return nil, fmt.Errorf("dict_name and key must be non-empty")
	}
	valuesExpr, err := lispTypedValues(input.Values)
	if err != nil {
		return nil, err
	}
	overwrite := "T"
	if input.Overwrite != nil && !*input.Overwrite {
		overwrite = "nil"
	}
	expr := dictLispLib + fmt.Sprintf("\n(mcp-xrecord-set %s %s %s %s)\n",
		lispString(input.DictName), lispString(input.Key), valuesExpr, overwrite)
	object, err := s.runLispJSON(ctx, expr, defaultTimeoutSec)
	if err != nil {
		return nil, err
	}
	result := &XrecordSetResult{}
	return result, remarshal(object, result)
}

// XrecordDeleteResult reports whether an entry was removed.
type XrecordDeleteResult struct {
	Deleted bool `json:"deleted"`
}

// DictXrecordDelete implements the dict_xrecord_delete tool.
func (s *Service) DictXrecordDelete(ctx context.Context, input *XrecordKeyInput) (*XrecordDeleteResult, error) {
	if input.DictName == "" || input.Key == "" {
		return nil, fmt.Errorf("dict_name and key must be non-empty")
	}
	expr := dictLispLib + fmt.Sprintf("\n(mcp-xrecord-delete %s %s)\n", lispString(input.DictName), lispString(input.Key))
	object, err := s.runLispJSON(ctx, expr, defaultTimeoutSec)
	if err != nil {
		return nil, err
	}
	result := &XrecordDeleteResult{}
	return result, remarshal(object, result)
}

// DictDeleteInput names a dictionary to remove.
type DictDeleteInput struct {
	DictName  string `json:"dict_name"`
	Recursive *bool  `json:"recursive,omitempty"`
}

// DictDeleteResult reports a dictionary removal.
type DictDeleteResult struct {
	Deleted        bool `json:"deleted"`
	DeletedEntries int  `json:"deleted_entries"`
}

// DictDelete implements the dict_delete tool.
func (s *Service) DictDelete(ctx context.Context, input *DictDeleteInput) (*DictDeleteResult, error) {
	if input.DictName == "" {
		return nil, fmt.Errorf("dict_name must be non-empty")
	}
	recursive := "T"
	if input.Recursive != nil && !*input.Recursive {
		recursive = "nil"
	}
	expr := dictLispLib + fmt.Sprintf("\n(mcp-dict-delete %s %s)\n", lispString(input.DictName), recursive)
	object, err := s.runLispJSON(ctx, expr, defaultTimeoutSec)
	if err != nil {
		return nil, err
	}
	result := &DictDeleteResult{}
	return result, remarshal(object, result)
}
