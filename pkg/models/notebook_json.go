package models

import (
	"encoding/json"
	"strings"
)

// ipynbのフィールドは文字列と文字列配列の両形式が流通しているため
// どちらも受け付けるよう個別にアンマーシャルします

type rawCell struct {
	CellType       CellType        `json:"cell_type"`
	Source         json.RawMessage `json:"source"`
	Outputs        json.RawMessage `json:"outputs"`
	ExecutionCount *int            `json:"execution_count"`
}

type rawOutput struct {
	OutputType string          `json:"output_type"`
	Name       string          `json:"name"`
	Text       json.RawMessage `json:"text"`
	EName      string          `json:"ename"`
	EValue     string          `json:"evalue"`
	Traceback  json.RawMessage `json:"traceback"`
}

// UnmarshalJSON は NotebookCell のアンマーシャルを実装します
func (c *NotebookCell) UnmarshalJSON(data []byte) error {
	var raw rawCell
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.CellType = raw.CellType
	c.ExecutionCount = raw.ExecutionCount

	lines, err := decodeStringOrLines(raw.Source)
	if err != nil {
		return err
	}
	c.Source = lines

	if len(raw.Outputs) > 0 {
		var outputs []NotebookOutput
		if err := json.Unmarshal(raw.Outputs, &outputs); err != nil {
			return err
		}
		c.Outputs = outputs
	}
	return nil
}

// UnmarshalJSON は NotebookOutput のアンマーシャルを実装します
func (o *NotebookOutput) UnmarshalJSON(data []byte) error {
	var raw rawOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	o.OutputType = raw.OutputType
	o.Name = raw.Name
	o.EName = raw.EName
	o.EValue = raw.EValue

	if len(raw.Text) > 0 {
		lines, err := decodeStringOrLines(raw.Text)
		if err != nil {
			return err
		}
		o.Text = strings.Join(lines, "")
	}
	if len(raw.Traceback) > 0 {
		lines, err := decodeStringOrLines(raw.Traceback)
		if err != nil {
			return err
		}
		o.Traceback = strings.Join(lines, "\n")
	}
	return nil
}

// decodeStringOrLines は文字列または文字列配列を行スライスへ正規化します
func decodeStringOrLines(data json.RawMessage) ([]string, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
	var lines []string
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}
