package log

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	DefaultPattern    = "%time [%level] %msg %field%n"
	DefaultTimeLayout = "2006-01-02 15:04:05.000"
)

type formatter struct {
	pattern string
	time    string
}

// Format expands %time, %level, %field, %msg, %caller, %func, %goroutine and
// %n. Every line ends with a newline.
func (f *formatter) Format(entry *logrus.Entry) ([]byte, error) {
	output := f.pattern
	output = strings.Replace(output, "%time", entry.Time.Format(f.time), 1)
	output = strings.Replace(output, "%level", entry.Level.String(), 1)
	output = strings.Replace(output, "%field", buildFields(entry), 1)
	output = strings.Replace(output, "%msg", entry.Message, 1)
	output = strings.Replace(output, "%caller", getCaller(entry), 1)
	output = strings.Replace(output, "%func", getFunc(entry), 1)
	output = strings.Replace(output, "%goroutine", getGoroutineID(), 1)
	output = strings.ReplaceAll(output, "%n", "\n")
	if !strings.HasSuffix(output, "\n") {
		output += "\n"
	}
	return []byte(output), nil
}

// getCaller returns package/file.go:line of the logging call site.
func getCaller(entry *logrus.Entry) string {
	if !entry.HasCaller() {
		return "unknown"
	}
	file := entry.Caller.File
	if i := strings.LastIndex(file, "/"); i != -1 && i+1 < len(file) {
		file = file[i+1:]
	}
	// Function is "module/path/pkg.(*T).Method"; the module path may contain dots.
	pkg := entry.Caller.Function
	if i := strings.LastIndex(pkg, "/"); i != -1 {
		pkg = pkg[i+1:]
	}
	if i := strings.Index(pkg, "."); i != -1 {
		pkg = pkg[:i]
	}
	return fmt.Sprintf("%s/%s:%d", pkg, file, entry.Caller.Line)
}

func getFunc(entry *logrus.Entry) string {
	if !entry.HasCaller() {
		return "unknown"
	}
	funcName := entry.Caller.Function
	if i := strings.LastIndex(funcName, "."); i != -1 && i+1 < len(funcName) {
		return funcName[i+1:]
	}
	return funcName
}

func getGoroutineID() string {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	stack := strings.TrimPrefix(string(buf[:n]), "goroutine ")
	idField := strings.Fields(stack)
	if len(idField) > 0 {
		return idField[0]
	}
	return "unknown"
}

// buildFields renders entry data as key=value pairs sorted by key.
func buildFields(entry *logrus.Entry) string {
	keys := make([]string, 0, len(entry.Data))
	for key := range entry.Data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fields := make([]string, 0, len(keys))
	for _, key := range keys {
		val := entry.Data[key]
		stringVal, ok := val.(string)
		if !ok {
			stringVal = fmt.Sprint(val)
		}
		fields = append(fields, key+"="+stringVal)
	}
	return strings.Join(fields, ",")
}
