package tools

import (
    "bytes"
    "encoding/json"
    "fmt"
    "slices"
    "strings"

    "github.com/example/todo-agent/internal/providers/llm"
)

// ArgumentError reports a structurally invalid tool call: bad JSON, wrong
// types, enum violations or missing required parameters. It is kept distinct
// from domain outcomes such as "no task matched".
type ArgumentError struct {
    Tool    string
    Problem string
}

func (e *ArgumentError) Error() string {
    return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Problem)
}

// ParseArguments decodes the raw JSON a model emitted into an argument map.
// Empty input and JSON null both mean "no arguments".
func ParseArguments(tool string, raw json.RawMessage) (map[string]any, error) {
    raw = bytes.TrimSpace(raw)
    if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
        return map[string]any{}, nil
    }
    var args map[string]any
    if err := json.Unmarshal(raw, &args); err != nil {
        return nil, &ArgumentError{Tool: tool, Problem: "arguments must be a JSON object"}
    }
    if args == nil { args = map[string]any{} }
    return args, nil
}

// ValidateArguments checks args against the declared schema. Null values, and
// blank strings for enum parameters, are dropped so later stages only see
// present parameters; undeclared keys are ignored. Enums match case-insensitively.
func ValidateArguments(tool string, schema llm.Schema, args map[string]any) error {
    for name, v := range args {
        if v == nil {
            delete(args, name)
            continue
        }
        prop, ok := schema.Properties[name]
        if !ok { continue }
        if err := checkType(prop, v); err != "" {
            return &ArgumentError{Tool: tool, Problem: fmt.Sprintf("%q %s", name, err)}
        }
        if len(prop.Enum) == 0 { continue }
        val := strings.TrimSpace(v.(string))
        if val == "" {
            delete(args, name)
            continue
        }
        if !slices.ContainsFunc(prop.Enum, func(e string) bool { return strings.EqualFold(e, val) }) {
            return &ArgumentError{Tool: tool, Problem: fmt.Sprintf("%q must be one of %s", name, strings.Join(prop.Enum, ", "))}
        }
    }
    for _, name := range schema.Required {
        if _, ok := args[name]; !ok {
            return &ArgumentError{Tool: tool, Problem: fmt.Sprintf("missing required parameter %q", name)}
        }
    }
    return nil
}

func checkType(p llm.Property, v any) string {
    switch p.Type {
    case "string":
        if _, ok := v.(string); !ok { return "must be a string" }
    case "boolean":
        if _, ok := v.(bool); !ok { return "must be a boolean" }
    case "number", "integer":
        if _, ok := v.(float64); !ok { return "must be a number" }
    }
    return ""
}

// str returns a validated string argument, trimmed; absent yields "".
func str(args map[string]any, name string) string {
    s, _ := args[name].(string)
    return strings.TrimSpace(s)
}

// optStr returns nil when the argument is absent or blank.
func optStr(args map[string]any, name string) *string {
    s := str(args, name)
    if s == "" { return nil }
    return &s
}
