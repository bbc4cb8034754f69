package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/shaiso/flowgraph/internal/domain"
)

// Output управляет форматированием вывода CLI.
type Output struct {
	jsonMode bool
	w        io.Writer // stdout для данных
	errW     io.Writer // stderr для сообщений
}

// NewOutput создаёт Output. Если jsonMode=true, данные выводятся в JSON.
func NewOutput(jsonMode bool) *Output {
	return NewOutputTo(jsonMode, os.Stdout, os.Stderr)
}

// NewOutputTo создаёт Output с заданными потоками.
func NewOutputTo(jsonMode bool, w, errW io.Writer) *Output {
	return &Output{
		jsonMode: jsonMode,
		w:        w,
		errW:     errW,
	}
}

// JSONMode сообщает, включён ли вывод в JSON.
func (o *Output) JSONMode() bool {
	return o.jsonMode
}

// Print выводит данные: таблицу или JSON в зависимости от режима.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table выводит данные в виде таблицы через tabwriter.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

// JSON выводит данные в формате JSON с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// Raw выводит данные как есть.
func (o *Output) Raw(data []byte) {
	o.w.Write(data)
}

// Success выводит сообщение об успехе в stderr.
func (o *Output) Success(msg string) {
	color.New(color.FgGreen, color.Bold).Fprintln(o.errW, msg)
}

// Info выводит информационное сообщение в stderr.
func (o *Output) Info(msg string) {
	color.New(color.FgCyan).Fprintln(o.errW, msg)
}

// Error выводит сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	color.New(color.FgRed, color.Bold).Fprintln(o.errW, "Error: "+msg)
}

// Log выводит строку журнала симуляции в stderr, раскрашенную по уровню.
func (o *Output) Log(entry domain.LogEntry) {
	c := color.New(color.FgCyan)
	switch entry.Level {
	case domain.LogSuccess:
		c = color.New(color.FgGreen)
	case domain.LogError:
		c = color.New(color.FgRed)
	}
	c.Fprintf(o.errW, "[%s] %s\n", entry.Timestamp.Format("15:04:05.000"), entry.Message)
}

// stepRows строит строки таблицы шагов.
func stepRows(steps []domain.ExecutionStep) [][]string {
	rows := make([][]string, len(steps))
	for i, s := range steps {
		status := "ok"
		if s.Failed() {
			status = s.Error
		}
		rows[i] = []string{
			fmt.Sprintf("%d", s.Index),
			s.NodeID,
			string(s.NodeType),
			s.Duration.String(),
			status,
		}
	}
	return rows
}

var stepHeaders = []string{"#", "NODE", "TYPE", "DURATION", "STATUS"}

func progressString(p domain.Progress) string {
	return fmt.Sprintf("%d/%d (%.0f%%)", p.Current, p.Total, p.Percentage)
}
