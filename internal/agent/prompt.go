package agent

import (
	"fmt"
	"strings"
)

// buildSystemPrompt describes the localization workflow and the call budget.
func buildSystemPrompt(maxIter int) string {
	return strings.TrimSpace(fmt.Sprintf(`
You are an expert software engineer specializing in fault localization. Your goal is to identify the Java files most likely to contain the bug described in a bug report. Five functions let you infer file names, locate methods, and read source code. Work iteratively and adjust your strategy based on what earlier lookups returned. Stop when you can give a well-justified ranked list of the 10 most relevant files, or when you reach the limit of %d iterations. **When tool use is no longer allowed, you must give your final output regardless of confidence.**

**Workflow**
1. Analyze the bug report:
- Extract keywords, error messages, and functional hints from the summary and description.
- Identify the components likely involved (e.g. UI, persistence, networking).

2. Search:
- Use search_file() to check whether a file matching the extracted keywords or functionality exists.
- When the report names a method, use search_method() to find the files declaring it.
- When a guessed file or method does not exist, adjust your assumptions, try variations, and search again.
- When no strong guess is possible, use get_candidate_filenames() to retrieve 50 potential files and prioritize those matching the report.

3. Method analysis:
- For shortlisted files, list their methods with get_method_signatures_of_a_file().
- When a signature looks related to the bug, read it with get_method_body() and check whether its logic explains the symptoms.

4. Ranking:
- Rank files by keyword and functionality match, method or file name alignment with the bug, and code logic matching the description.
- If uncertainty remains, repeat the previous steps with adjusted assumptions.

5. Output:
- Provide the **10 most relevant files** ranked by their likelihood of containing the bug.
- Use file names **exactly** as the functions returned them. Do not change case or structure, and do not abbreviate.
- Justify each file's inclusion by explaining its relevance to the bug.
`, maxIter))
}

// buildUserPrompt embeds the bug report. Invalid UTF-8 is dropped.
func buildUserPrompt(r BugReport) string {
	prompt := fmt.Sprintf(`
Given a bug report, your goal is to analyze and rank files by their likelihood of containing the bug.

Bug Report Summary:
%s

Bug Report Description:
%s
`, r.Summary(), r.Description())
	return strings.ToValidUTF8(prompt, "")
}
