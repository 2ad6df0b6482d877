package genflow

import (
	"fmt"
	"strings"
)

// SystemPrompt is the fixed instruction sent with every completion
// request. It pins the response format the schema validator expects.
const SystemPrompt = `You are an expert n8n workflow architect. Generate complex, production-ready n8n workflows based on user descriptions.

Requirements:
- Use 5-15 nodes for comprehensive automation
- Include error handling nodes (IF nodes for checks)
- Add proper node connections with correct port mappings
- Use realistic node types from n8n (HTTP Request, Code, Set, IF, Merge, etc.)
- Include metadata: node positions (x, y coordinates) in a logical left-to-right, top-to-bottom layout
- Return ONLY valid JSON, no explanations

Response format:
{
  "nodes": [
    {
      "id": "unique_id",
      "name": "Node Name",
      "type": "n8n-nodes-base.httpRequest",
      "typeVersion": 1,
      "position": [x, y],
      "parameters": {
        "url": "https://example.com/api",
        "method": "GET"
      }
    }
  ],
  "connections": {
    "node_id": {
      "main": [[{"node": "target_node_id", "type": "main", "index": 0}]]
    }
  }
}

Important:
- Node IDs must be unique
- Connections reference node IDs (not names)
- Position coordinates: start at [0, 0], increment by ~300 horizontally, ~200 vertically
- Include realistic parameters for each node type
- Always add at least one error handling path (IF node checking for errors)`

// correctionPrompt builds the synthetic user turn injected after a
// rejected attempt, so the next attempt sees its own mistakes.
func correctionPrompt(validationErrors []string) string {
	return fmt.Sprintf(
		"The workflow has validation errors: %s. Please fix these issues and generate a valid workflow.",
		strings.Join(validationErrors, ", "),
	)
}
