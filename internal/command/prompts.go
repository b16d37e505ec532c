package command

import (
	"fmt"
	"time"
)

const systemPrompt = "You are a bookkeeping assistant. Convert the user's natural-language instruction " +
	"into STRICT JSON operations on their personal ledger.\n" +
	"Output JSON only: no comments, no explanation, no code fences.\n\n" +
	"Supported operations: ADD (new record), UPDATE (modify records), DELETE (remove records).\n\n" +
	"Fields:\n" +
	"- \"type\": \"ADD\" | \"UPDATE\" | \"DELETE\"\n" +
	"- \"amount\": number, no currency symbols or units\n" +
	"- \"transaction_type\": \"INCOME\" | \"EXPENSE\" (translate words like 收入/支出, earned/spent)\n" +
	"- \"date\": \"YYYY-MM-DD\"; relative dates such as today, yesterday or last Wednesday MUST be resolved to a concrete date\n" +
	"- \"description\": string\n" +
	"- \"tags\": array of strings, may be empty\n" +
	"- \"transaction_id\": only when the user names a record id directly\n" +
	"- \"filter\": object used by UPDATE and DELETE to select records; keys: \"date\", \"transaction_type\", " +
	"\"description_contains\", \"tags\" (array, all must be present)\n\n" +
	"For UPDATE, include only the fields that change.\n" +
	"Output structure: {\"operations\": [{ ... }]}\n"

const fewShotPrompt = "Example:\n" +
	"User: lunch today was 36.5, tag it food; change yesterday's Starbucks expense to 45; delete last Wednesday's side job income.\n" +
	"Output: {\n" +
	"  \"operations\": [\n" +
	"    {\"type\": \"ADD\", \"amount\": 36.5, \"transaction_type\": \"EXPENSE\", \"date\": \"<concrete date>\", \"description\": \"lunch\", \"tags\": [\"food\"]},\n" +
	"    {\"type\": \"UPDATE\", \"filter\": {\"date\": \"<concrete date>\", \"transaction_type\": \"EXPENSE\", \"description_contains\": \"Starbucks\"}, \"amount\": 45.0},\n" +
	"    {\"type\": \"DELETE\", \"filter\": {\"date\": \"<concrete date>\", \"transaction_type\": \"INCOME\", \"description_contains\": \"side job\"}}\n" +
	"  ]\n" +
	"}\n"

// dateContext tells the model what "today" is so it can resolve relative dates.
func dateContext(now time.Time) string {
	return fmt.Sprintf("Today is %s (%s), current time %s. Convert relative dates into concrete dates.",
		now.Format("2006-01-02"), now.Weekday(), now.Format("15:04"))
}
