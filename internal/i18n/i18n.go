// Package i18n holds the supported output languages and the few strings the
// service produces itself when no AI provider is available.
package i18n

import "strings"

// Language is an ISO 639-1 code for a supported output language.
type Language string

const (
	English   Language = "en"
	Hindi     Language = "hi"
	Tamil     Language = "ta"
	Bengali   Language = "bn"
	Telugu    Language = "te"
	Marathi   Language = "mr"
	Gujarati  Language = "gu"
	Kannada   Language = "kn"
	Malayalam Language = "ml"
	Punjabi   Language = "pa"
	Urdu      Language = "ur"
)

type langInfo struct {
	english string
	native  string
}

var languages = map[Language]langInfo{
	English:   {"English", "English"},
	Hindi:     {"Hindi", "हिंदी"},
	Tamil:     {"Tamil", "தமிழ்"},
	Bengali:   {"Bengali", "বাংলা"},
	Telugu:    {"Telugu", "తెలుగు"},
	Marathi:   {"Marathi", "मराठी"},
	Gujarati:  {"Gujarati", "ગુજરાતી"},
	Kannada:   {"Kannada", "ಕನ್ನಡ"},
	Malayalam: {"Malayalam", "മലയാളം"},
	Punjabi:   {"Punjabi", "ਪੰਜਾਬੀ"},
	Urdu:      {"Urdu", "اردو"},
}

// All lists the supported languages in display order.
var All = []Language{English, Hindi, Tamil, Bengali, Telugu, Marathi, Gujarati, Kannada, Malayalam, Punjabi, Urdu}

// Parse normalizes a language code. Unknown codes become English.
func Parse(code string) Language {
	l := Language(strings.ToLower(strings.TrimSpace(code)))
	if _, ok := languages[l]; ok {
		return l
	}
	return English
}

// Name returns the English name of the language.
func (l Language) Name() string {
	return languages[Parse(string(l))].english
}

// NativeName returns the language name in its own script.
func (l Language) NativeName() string {
	return languages[Parse(string(l))].native
}

// Instruction is the line prepended to prompts to force the response language.
func (l Language) Instruction() string {
	return "You MUST respond ONLY in " + l.Name() + "."
}

var fallbackTakeaways = map[Language][3]string{
	English: {
		"Important for current affairs",
		"Relevant for competitive exams",
		"Key development in the sector",
	},
	Hindi: {
		"करंट अफेयर्स के लिए महत्वपूर्ण",
		"प्रतियोगी परीक्षाओं के लिए प्रासंगिक",
		"क्षेत्र में प्रमुख विकास",
	},
	Tamil: {
		"நடப்பு விவகாரங்களுக்கு முக்கியம்",
		"போட்டித் தேர்வுகளுக்கு பொருத்தமானது",
		"துறையில் முக்கிய வளர்ச்சி",
	},
	Bengali: {
		"কারেন্ট অ্যাফেয়ার্সের জন্য গুরুত্বপূর্ণ",
		"প্রতিযোগিতামূলক পরীক্ষার জন্য প্রাসঙ্গিক",
		"সেক্টরে প্রধান উন্নয়ন",
	},
	Telugu: {
		"కరెంట్ అఫైర్స్ కోసం ముఖ్యమైనది",
		"పోటీ పరీక్షలకు సంబంధించినది",
		"రంగంలో కీలక అభివృద్ధి",
	},
	Marathi: {
		"चालू घडामोडींसाठी महत्त्वाचे",
		"स्पर्धा परीक्षांसाठी संबंधित",
		"क्षेत्रात प्रमुख विकास",
	},
	Gujarati: {
		"વર્તમાન બાબતો માટે મહત્વપૂર્ણ",
		"સ્પર્ધાત્મક પરીક્ષાઓ માટે સંબંધિત",
		"ક્ષેત્રમાં મુખ્ય વિકાસ",
	},
	Kannada: {
		"ಕರೆಂಟ್ ಅಫೇರ್ಸ್ ಗೆ ಮುಖ್ಯ",
		"ಸ್ಪರ್ಧಾತ್ಮಕ ಪರೀಕ್ಷೆಗಳಿಗೆ ಸಂಬಂಧಿತ",
		"ವಲಯದಲ್ಲಿ ಪ್ರಮುಖ ಅಭಿವೃದ್ಧಿ",
	},
	Malayalam: {
		"കറന്റ് അഫയേഴ്സിന് പ്രധാനം",
		"മത്സര പരീക്ഷകൾക്ക് പ്രസക്തം",
		"മേഖലയിൽ പ്രധാന വികസനം",
	},
	Punjabi: {
		"ਕਰੰਟ ਅਫੇਅਰਜ਼ ਲਈ ਮਹੱਤਵਪੂਰਨ",
		"ਪ੍ਰਤੀਯੋਗੀ ਪ੍ਰੀਖਿਆਵਾਂ ਲਈ ਸੰਬੰਧਿਤ",
		"ਸੈਕਟਰ ਵਿੱਚ ਮੁੱਖ ਵਿਕਾਸ",
	},
	Urdu: {
		"کرنٹ افیئرز کے لیے اہم",
		"مسابقتی امتحانات کے لیے متعلقہ",
		"شعبے میں اہم ترقی",
	},
}

// FallbackTakeaways returns the generic takeaways used when no AI summary could be made.
func (l Language) FallbackTakeaways() []string {
	t := fallbackTakeaways[Parse(string(l))]
	return []string{t[0], t[1], t[2]}
}
