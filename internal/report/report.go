// Package report 把运行结果持久化为 CSV（两行：提交、标签）与 JSON。
package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/John-Robertt/webappversion/internal/domain"
	"github.com/John-Robertt/webappversion/internal/infra/fsx"
)

// Delimiter 是 CSV 的列分隔符。
const Delimiter = ';'

// WriteCSV 输出两行：第一行为一致提交，第二行为标签。空列表输出空行。
func WriteCSV(w io.Writer, r domain.Report) error {
	cw := csv.NewWriter(w)
	cw.Comma = Delimiter
	if err := cw.Write(r.CommitStrings()); err != nil {
		return err
	}
	if err := cw.Write(r.Tags); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON 输出完整报告（含 commits/tags 与运行元数据），4 空格缩进。
func WriteJSON(w io.Writer, r domain.Report) error {
	r.Finalize()
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	return enc.Encode(r)
}

// Files 把报告原子写入 csvPath / jsonPath；路径为空表示不输出该格式。
func Files(r domain.Report, csvPath, jsonPath string) error {
	if csvPath != "" {
		var buf bytes.Buffer
		if err := WriteCSV(&buf, r); err != nil {
			return fmt.Errorf("生成 CSV 失败：%w", err)
		}
		if err := fsx.WriteFile(csvPath, buf.Bytes()); err != nil {
			return fmt.Errorf("写入 %s 失败：%w", csvPath, err)
		}
	}
	if jsonPath != "" {
		var buf bytes.Buffer
		if err := WriteJSON(&buf, r); err != nil {
			return fmt.Errorf("生成 JSON 失败：%w", err)
		}
		if err := fsx.WriteFile(jsonPath, buf.Bytes()); err != nil {
			return fmt.Errorf("写入 %s 失败：%w", jsonPath, err)
		}
	}
	return nil
}
