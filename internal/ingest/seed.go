package ingest

import "fmt"

// seedTopics is the starter corpus: per-topic verified facts and known
// myths covering common consumer-health questions.
var seedTopics = map[string]struct {
	facts []string
	myths []string
}{
	"flu": {
		facts: []string{
			"Influenza is a viral infection that attacks your respiratory system.",
			"Annual flu shots are effective in reducing severe illness.",
			"Symptoms include fever, chills, muscle aches, cough, and fatigue.",
			"Antibiotics do not treat the flu because it is viral, not bacterial.",
			"Rest and hydration are the primary treatments for mild flu cases.",
		},
		myths: []string{
			"The flu vaccine gives you the flu.",
			"Feed a cold, starve a fever (medical advice supports nutrition for both).",
			"You can catch the flu from cold weather alone.",
		},
	},
	"diabetes": {
		facts: []string{
			"Type 1 diabetes is an autoimmune reaction that stops the body from making insulin.",
			"Type 2 diabetes is often linked to lifestyle factors and insulin resistance.",
			"Unmanaged diabetes can lead to nerve damage, kidney failure, and blindness.",
			"Regular physical activity helps control blood sugar levels.",
		},
		myths: []string{
			"Eating too much sugar is the only cause of diabetes.",
			"People with diabetes cannot eat any fruit.",
			"Insulin cures diabetes (it manages it, but is not a cure).",
		},
	},
	"hypertension": {
		facts: []string{
			"High blood pressure typically has no symptoms until significant damage is done.",
			"Reducing sodium intake can lower blood pressure.",
			"Untreated hypertension increases risk of heart attack and stroke.",
		},
		myths: []string{
			"If you feel fine, you don't have high blood pressure.",
			"Wine is a cure for high blood pressure.",
			"Only stressed people get high blood pressure.",
		},
	},
	"first_aid": {
		facts: []string{
			"For burns, run cool (not cold) tap water over the burn for 10-20 minutes.",
			"CPR compression rate represents 100-120 beats per minute.",
			"Do not tilt your head back during a nosebleed; pinch the nose and lean forward.",
			"For a cut, apply direct pressure with a clean cloth to stop bleeding.",
		},
		myths: []string{
			"Put butter or oil on a burn to soothe it (this traps heat).",
			"Tilt your head back to stop a nosebleed (causes blood swallowing).",
			"Suck the venom out of a snake bite.",
		},
	},
	"nutrition": {
		facts: []string{
			"Fiber aids digestion.",
			"Protein builds muscle.",
			"Vitamin C supports immunity.",
			"Calcium strengthens bones.",
			"Water is vital for cell function.",
		},
		myths: []string{
			"Carbs are evil.",
			"Detox teas work instantly.",
			"Skipping meals helps weight loss.",
			"All fat is bad.",
		},
	},
}

var seedImageTopics = []string{"heart", "brain", "lungs", "dna", "virus"}

const seedDate = "2025-06-01"

// SeedFacts returns the bundled verified facts.
func SeedFacts() []TextDoc {
	var docs []TextDoc
	for topic, data := range seedTopics {
		for i, body := range data.facts {
			docs = append(docs, TextDoc{
				DocID:  fmt.Sprintf("fact_%s_%d", topic, i),
				Title:  fmt.Sprintf("Medical Fact: %s", topic),
				Body:   body,
				Source: "Global Health Authority",
				Date:   seedDate,
				Topic:  topic,
			})
		}
	}
	return docs
}

// SeedMyths returns the bundled known misinformation.
func SeedMyths() []TextDoc {
	var docs []TextDoc
	for topic, data := range seedTopics {
		for i, body := range data.myths {
			docs = append(docs, TextDoc{
				DocID:  fmt.Sprintf("myth_%s_%d", topic, i),
				Title:  fmt.Sprintf("Medical Myth: %s", topic),
				Body:   body,
				Source: "Unverified Online Source",
				Date:   seedDate,
				Topic:  topic,
			})
		}
	}
	return docs
}

// SeedImages returns caption-only reference imagery metadata. Without
// image files on disk the captions are embedded into the image space.
func SeedImages() []ImageDoc {
	docs := make([]ImageDoc, 0, len(seedImageTopics))
	for i, topic := range seedImageTopics {
		docs = append(docs, ImageDoc{
			ImgID:   fmt.Sprintf("img_%d", i),
			Caption: fmt.Sprintf("Anatomical reference of human %s", topic),
			Source:  "HealthGuard Image DB",
			Date:    seedDate,
			Topic:   "anatomy",
		})
	}
	return docs
}
