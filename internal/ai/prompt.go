package ai

const systemPrompt = `You are a nutrition estimation assistant. Reply with a single JSON object and nothing else.
Schema: {"items":[{"name":string,"quantity":string,"calories":number,"protein_g":number,"carbs_g":number,"fat_g":number}],
"totals":{"calories":number,"protein_g":number,"carbs_g":number,"fat_g":number}}`

const maxDescriptionBytes = 2000

func photoPrompt(description string) string {
	p := "Identify every food in this photo and estimate its portion and macronutrients."
	if description != "" {
		p += "\nThe user describes the meal as: " + truncateString(description, maxDescriptionBytes)
	}
	return p
}

func textPrompt(text string) string {
	return "Estimate the foods, portions and macronutrients in this meal plan:\n" +
		truncateString(text, maxDescriptionBytes)
}
