package tiptap

import (
	"encoding/json"
	"io"
	"log/slog"

	"github.com/aisa-it/richedit/internal/richedit/editor/edtypes"
)

func init() {
	edtypes.TipTapParser = ParseJSON
	edtypes.TipTapSerializer = Serialize
}

// ParseJSON парсит JSON контент TipTap редактора в структуру edtypes.Document.
// Принимает io.Reader с JSON данными и возвращает распарсенный документ.
func ParseJSON(r io.Reader) (*edtypes.Document, error) {
	var tipTapDoc TipTapDocument
	if err := json.NewDecoder(r).Decode(&tipTapDoc); err != nil {
		return nil, err
	}

	return &edtypes.Document{
		Elements: parseBlocks(tipTapDoc.Content),
	}, nil
}

// parseBlocks парсит последовательность блочных нод. Изображения и видео внутри
// параграфов поднимаются на уровень блоков, параграф при этом делится.
func parseBlocks(nodes []TipTapNode) []any {
	blocks := make([]any, 0, len(nodes))
	for _, node := range nodes {
		if node.Type == "paragraph" {
			blocks = append(blocks, splitParagraph(node)...)
			continue
		}
		if elem := parseNode(node); elem != nil {
			blocks = append(blocks, elem)
		}
	}
	return blocks
}

// parseNode парсит отдельную ноду TipTap и возвращает соответствующий элемент edtypes.
func parseNode(node TipTapNode) any {
	switch node.Type {
	case "paragraph":
		return parseParagraph(node)
	case "heading":
		return parseHeading(node)
	case "blockquote":
		return parseBlockquote(node)
	case "codeBlock":
		return parseCodeBlock(node)
	case "bulletList", "orderedList":
		return parseList(node)
	case "horizontalRule":
		return &edtypes.HorizontalRule{}
	case "table":
		return parseTable(node)
	case "image", "imageResize":
		return parseImage(node)
	case "youtube":
		return parseVideo(node)
	default:
		slog.Warn("Unknown node type", "type", node.Type)
		return nil
	}
}
