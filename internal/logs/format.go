package logs

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Format renders a JSON log record as "15:04:05 LEVEL message key=value".
// Lines that are not JSON objects are returned unchanged.
func Format(line string) string {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return line
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(trimmed), &record); err != nil {
		return line
	}

	stamp := ""
	raw, ok := record["ts"].(string)
	if !ok {
		raw, ok = record["time"].(string)
	}
	if ok {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			stamp = t.Local().Format("15:04:05")
		}
	}
	level, _ := record["level"].(string)
	msg, _ := record["msg"].(string)
	delete(record, "ts")
	delete(record, "time")
	delete(record, "level")
	delete(record, "msg")
	delete(record, "source")

	keys := make([]string, 0, len(record))
	for key := range record {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	if stamp != "" {
		b.WriteString(stamp)
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%-5s %s", strings.ToUpper(level), msg)
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%v", key, record[key])
	}
	return b.String()
}
