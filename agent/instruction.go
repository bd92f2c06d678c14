package agent

import (
	"fmt"
	"strings"

	"github.com/hupe1980/mcpchat/tool"
)

const noToolsInstructions = "You currently do not have access to any external tools. " +
	"If the user asks you to perform actions that require tools (like reading files, " +
	"listing directories, etc.), politely explain that no tool providers are currently " +
	"selected and suggest they select the appropriate providers."

// Instructions builds the system prompt for a run. The tool-equipped variant
// tells the model to disregard earlier history claiming it lacks tools,
// since the tool set changes per request.
func Instructions(catalog *tool.Catalog) string {
	if catalog == nil || catalog.Len() == 0 {
		return noToolsInstructions
	}
	return fmt.Sprintf(
		"You have access to the following tools: %s. "+
			"IMPORTANT: Ignore any previous messages in the conversation history that say "+
			"you don't have access to tools - your tool access has been updated for this "+
			"request. Do not say you cannot perform an action a tool covers; instead, "+
			"invoke the appropriate tool. Use the tools available to you to help the user "+
			"with their request.",
		strings.Join(catalog.Names(), ", "),
	)
}
