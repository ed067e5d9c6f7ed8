package mcpserver

// CandidateFormatContract describes the JSON shape LLM consumers must
// follow when saving items through the save_item tool.
const CandidateFormatContract = `# Insightarium Candidate Item Contract

Every item saved through the MCP tools MUST follow this JSON structure.

## Structure

` + "```" + `json
{
  "source": "x",                              // REQUIRED: x | linkedin | reddit | url | raw
  "external_id": "1234567890",                // OPTIONAL: platform-native post ID
  "url": "https://x.com/user/status/1234567890",
  "content": "Body text of the post or page.",
  "author": "user",                           // OPTIONAL
  "timestamp": "2025-01-15T10:30:00Z"         // OPTIONAL: RFC 3339, when it was published
}
` + "```" + `

## Rules

1. **source is required.** Use "raw" for pasted text with no upstream origin.
2. **Either url or content must be present.** Items with neither are rejected.
3. **external_id** should be the platform's own post identifier when known.
   For x, linkedin, and reddit URLs it is derived automatically when omitted.
4. **Duplicate submissions are safe.** Re-saving the same post is a no-op;
   a changed version updates the existing item in place.
5. **raw items are never deduplicated.** Every raw submission creates a new item.
`
