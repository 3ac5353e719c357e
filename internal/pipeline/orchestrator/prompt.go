package orchestrator

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"docgen-workers/internal/common/validation"
	"docgen-workers/internal/models"
)

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// knownValues merges the fields pulled from the message with the caller's
// context. Context entries win.
func knownValues(extracted, ctxValues map[string]string) map[string]string {
	out := make(map[string]string, len(extracted)+len(ctxValues))
	for k, v := range extracted {
		out[strings.ToLower(k)] = v
	}
	for k, v := range ctxValues {
		if strings.TrimSpace(v) != "" {
			out[strings.ToLower(k)] = v
		}
	}
	return out
}

// fill substitutes every placeholder with a known value and leaves the
// others untouched.
func fill(content string, values map[string]string) string {
	return placeholder.ReplaceAllStringFunc(content, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		if v, ok := values[strings.ToLower(name)]; ok {
			return v
		}
		return m
	})
}

// finalize fills known values again and turns what is left into visible
// [NAME] markers, returning the names in order of first appearance.
func finalize(content string, values map[string]string) (string, []string) {
	content = fill(content, values)
	var missing []string
	seen := map[string]bool{}
	content = placeholder.ReplaceAllStringFunc(content, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		if !seen[name] {
			seen[name] = true
			missing = append(missing, name)
		}
		return "[" + name + "]"
	})
	return content, missing
}

// dropInvalid deletes the values that break the field rules, so they end up
// as missing-field markers, and returns their names sorted.
func dropInvalid(values map[string]string, rules map[string]map[string]string) []string {
	if len(rules) == 0 {
		return nil
	}
	vr := validation.CheckFields(values, rules)
	if vr.Valid {
		return nil
	}
	var rejected []string
	for field := range values {
		if vr.HasErrors(field) {
			rejected = append(rejected, field)
			delete(values, field)
		}
	}
	sort.Strings(rejected)
	return rejected
}

// bundleFor returns the selected bundle of templateID, or the first one when
// the template has none of its own.
func bundleFor(sel models.InstructionSelection, templateID string) models.MicroInstructionBundle {
	for _, b := range sel.Bundles {
		if b.TemplateID == templateID {
			return b
		}
	}
	if len(sel.Bundles) > 0 {
		return sel.Bundles[0]
	}
	return models.MicroInstructionBundle{}
}

func userPrompt(message string, tpl *models.Template, values map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Request: %s\n\nTemplate (%s):\n%s\n", strings.TrimSpace(message), tpl.ID, fill(tpl.Content, values))

	if len(values) > 0 {
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\nKnown values:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, values[k])
		}
	}
	return b.String()
}

// genericTemplate stands in when no candidate template could be resolved.
// It lists one labelled line per required field of the category.
func genericTemplate(intent models.IntentClassification) *models.Template {
	fields := intent.RequiredFields
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", strings.ToUpper(string(intent.Category)))
	for _, f := range fields {
		fmt.Fprintf(&b, "%s: {{%s}}\n", label(f), f)
	}
	return &models.Template{
		ID:             "generic_" + string(intent.Category),
		Name:           "Generic " + string(intent.Category) + " document",
		Category:       intent.Category,
		Subcategory:    intent.Subcategory,
		Content:        strings.TrimRight(b.String(), "\n"),
		Variables:      append([]string(nil), fields...),
		RequiredFields: append([]string(nil), fields...),
	}
}

func label(field string) string {
	words := strings.Split(field, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
