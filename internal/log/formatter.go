package log

import (
	"fmt"
	"reflect"
	"runtime"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// formatter renders entries through a pattern with the placeholders
// %time, %level, %field, %msg, %caller, %func and %goroutine.
type formatter struct {
	pattern string
	time    string
}

func (f *formatter) Format(entry *logrus.Entry) ([]byte, error) {
	output := f.pattern
	output = strings.Replace(output, "%time", entry.Time.Format(f.time), 1)
	output = strings.Replace(output, "%level", entry.Level.String(), 1)
	output = strings.Replace(output, "%field", buildFields(entry), 1)
	output = strings.Replace(output, "%msg", entry.Message, 1)
	if strings.Contains(output, "%caller") || strings.Contains(output, "%func") {
		frame, ok := callerFrame()
		output = strings.Replace(output, "%caller", getCaller(frame, ok), 1)
		output = strings.Replace(output, "%func", getFunc(frame, ok), 1)
	}
	if strings.Contains(output, "%goroutine") {
		output = strings.Replace(output, "%goroutine", getGoroutineID(), 1)
	}
	return []byte(output), nil
}

var (
	adapterPrefix   = reflect.TypeOf(formatter{}).PkgPath() + ".(*logrusAdapter)"
	formatterPrefix = reflect.TypeOf(formatter{}).PkgPath() + ".(*formatter)"
)

// callerFrame finds the first frame outside logrus and this package's adapter.
// logrus' own ReportCaller would stop at the adapter.
func callerFrame() (runtime.Frame, bool) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		if !strings.HasPrefix(f.Function, "github.com/sirupsen/logrus") &&
			!strings.HasPrefix(f.Function, adapterPrefix) &&
			!strings.HasPrefix(f.Function, formatterPrefix) {
			return f, true
		}
		if !more {
			return runtime.Frame{}, false
		}
	}
}

// getCaller returns "package/file.go:line".
func getCaller(frame runtime.Frame, ok bool) string {
	if !ok {
		return "unknown"
	}
	file := frame.File
	if i := strings.LastIndex(file, "/"); i != -1 && i+1 < len(file) {
		file = file[i+1:]
	}
	pkg := ""
	if fn := frame.Function; fn != "" {
		// "firestige.xyz/shipswitch/internal/engine.(*Engine).Process" -> "engine"
		if i := strings.LastIndex(fn, "/"); i != -1 {
			fn = fn[i+1:]
		}
		if i := strings.Index(fn, "."); i != -1 {
			pkg = fn[:i]
		}
	}
	return fmt.Sprintf("%s/%s:%d", pkg, file, frame.Line)
}

// getFunc returns the bare function or method name.
func getFunc(frame runtime.Frame, ok bool) string {
	if !ok {
		return "unknown"
	}
	name := frame.Function
	if i := strings.LastIndex(name, "."); i != -1 && i+1 < len(name) {
		return name[i+1:]
	}
	return name
}

func getGoroutineID() string {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	stack := strings.TrimPrefix(string(buf[:n]), "goroutine ")
	if id := strings.Fields(stack); len(id) > 0 {
		return id[0]
	}
	return "unknown"
}

// buildFields renders entry data as " k1=v1 k2=v2" in key order, or "".
func buildFields(entry *logrus.Entry) string {
	if len(entry.Data) == 0 {
		return ""
	}
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fmt.Sprint(entry.Data[k]))
	}
	return b.String()
}
