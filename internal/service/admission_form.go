package service

import (
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/noah-isme/ims-console-api/internal/dto"
	"github.com/noah-isme/ims-console-api/internal/models"
)

// Field normalisation events.
const (
	EventChange = "change"
	EventBlur   = "blur"
)

const minPassingYear = 2000

var (
	digitLimits = map[string]int{
		"mobileNumber":    10,
		"fatherNumber":    10,
		"motherNumber":    10,
		"referenceNumber": 10,
		"aadharNumber":    12,
		"pincode":         6,
	}
	nameFields = map[string]bool{
		"fullName":      true,
		"fatherName":    true,
		"motherName":    true,
		"referenceName": true,
	}

	phonePattern   = regexp.MustCompile(`^[6-9][0-9]{9}$`)
	aadharPattern  = regexp.MustCompile(`^[0-9]{12}$`)
	pincodePattern = regexp.MustCompile(`^[0-9]{6}$`)

	dateLayouts = []string{"2006-01-02", time.RFC3339, "02-01-2006", "02/01/2006", "2006/01/02"}
)

// NormalizeField applies the form's keystroke normalisation to one field. Digit fields
// are stripped to digits and truncated on every event; name fields are title-cased on blur.
// Unknown fields pass through unchanged.
func NormalizeField(field, value, event string) string {
	if limit, ok := digitLimits[field]; ok {
		return digitsOnly(value, limit)
	}
	if nameFields[field] && event == EventBlur {
		return titleCase(value)
	}
	return value
}

// NormalizeForm applies every field normalisation as if each field had been edited and blurred.
func NormalizeForm(form dto.AdmissionForm) dto.AdmissionForm {
	v := reflect.ValueOf(&form).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := v.Field(i)
		if f.Kind() != reflect.String {
			continue
		}
		name := jsonName(t.Field(i))
		f.SetString(strings.TrimSpace(NormalizeField(name, f.String(), EventBlur)))
	}
	form.DateOfBirth = normalizeDate(form.DateOfBirth)
	return form
}

func digitsOnly(value string, limit int) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			if b.Len() == limit {
				break
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

// titleCase lowercases value then upper-cases the first letter of each word.
// Runs of whitespace collapse to a single space.
func titleCase(value string) string {
	words := strings.Fields(strings.ToLower(value))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// normalizeDate returns value as YYYY-MM-DD, or "" when it is empty or unparseable.
func normalizeDate(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "" {
		return f.Name
	}
	return name
}

var fieldLabels = map[string]string{
	"fullName":          "Full name",
	"gender":            "Gender",
	"dateOfBirth":       "Date of birth",
	"mobileNumber":      "Mobile number",
	"fatherName":        "Father's name",
	"fatherNumber":      "Father's number",
	"motherName":        "Mother's name",
	"motherNumber":      "Mother's number",
	"aadharNumber":      "Aadhar number",
	"address":           "Address",
	"city":              "City",
	"state":             "State",
	"pincode":           "Pincode",
	"place":             "Area",
	"lastQualification": "Last qualification",
	"yearOfPassing":     "Year of passing",
	"schoolCollege":     "School/College",
	"course":            "Course",
	"preferredBatch":    "Preferred batch",
	"facultyAllotted":   "Faculty allotted",
	"category":          "Category",
	"source":            "Source",
	"email":             "Email",
	"referenceName":     "Reference name",
	"referenceNumber":   "Reference number",
	"remarks":           "Remarks",
}

func fieldLabel(field string) string {
	if label, ok := fieldLabels[field]; ok {
		return label
	}
	return field
}

// AdmissionValidator validates admission forms and request DTOs, producing
// per-field English messages keyed by json field name.
type AdmissionValidator struct {
	validate   *validator.Validate
	translator ut.Translator
	fieldOrder []string
	now        func() time.Time
}

// NewAdmissionValidator registers the form's custom tags on validate (nil creates one).
func NewAdmissionValidator(validate *validator.Validate) *AdmissionValidator {
	if validate == nil {
		validate = validator.New()
	}
	english := en.New()
	uni := ut.New(english, english)
	translator, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v := &AdmissionValidator{validate: validate, translator: translator, now: time.Now}

	_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = validate.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation("aadhar", func(fl validator.FieldLevel) bool {
		return aadharPattern.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation("pincode", func(fl validator.FieldLevel) bool {
		return pincodePattern.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation("passing_year", func(fl validator.FieldLevel) bool {
		year, err := strconv.Atoi(strings.TrimSpace(fl.Field().String()))
		return err == nil && year >= minPassingYear && year <= v.now().Year()
	})
	_ = validate.RegisterValidation("admission_source", func(fl validator.FieldLevel) bool {
		return models.AdmissionSource(fl.Field().String()).Valid()
	})

	v.register("notblank", "{0} is required")
	v.register("required", "{0} is required")
	v.register("phone", "{0} must be a valid 10-digit mobile number")
	v.register("aadhar", "{0} must be exactly 12 digits")
	v.register("pincode", "{0} must be exactly 6 digits")
	v.register("email", "{0} must be a valid email address")
	v.register("admission_source", "{0} is not a recognised admission source")
	_ = validate.RegisterTranslation("passing_year", translator,
		func(t ut.Translator) error {
			return t.Add("passing_year", "{0} must be a year between {1} and {2}", true)
		},
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T("passing_year", fieldLabel(fe.Field()), strconv.Itoa(minPassingYear), strconv.Itoa(v.now().Year()))
			return s
		},
	)

	formType := reflect.TypeOf(dto.AdmissionForm{})
	for i := 0; i < formType.NumField(); i++ {
		v.fieldOrder = append(v.fieldOrder, jsonName(formType.Field(i)))
	}
	return v
}

func (v *AdmissionValidator) register(tag, text string) {
	_ = v.validate.RegisterTranslation(tag, v.translator,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fieldLabel(fe.Field()))
			return s
		},
	)
}

// Engine exposes the underlying validator for request DTOs.
func (v *AdmissionValidator) Engine() *validator.Validate {
	return v.validate
}

// Validate returns one message per failing field; an empty map means the form is valid.
// Only the first failing rule of each field is reported.
func (v *AdmissionValidator) Validate(form dto.AdmissionForm) map[string]string {
	return v.Fields(form)
}

// Fields validates any struct and translates the failures by json field name.
func (v *AdmissionValidator) Fields(s interface{}) map[string]string {
	errs := make(map[string]string)
	err := v.validate.Struct(s)
	if err == nil {
		return errs
	}
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		errs["_"] = err.Error()
		return errs
	}
	for _, fe := range validationErrs {
		if _, seen := errs[fe.Field()]; seen {
			continue
		}
		errs[fe.Field()] = fe.Translate(v.translator)
	}
	return errs
}

// FirstError picks the message of the earliest failing field in form order.
func (v *AdmissionValidator) FirstError(errs map[string]string) *dto.FieldMessage {
	if len(errs) == 0 {
		return nil
	}
	for _, field := range v.fieldOrder {
		if msg, ok := errs[field]; ok {
			return &dto.FieldMessage{Field: field, Message: msg}
		}
	}
	// backend-only fields fall outside the form order
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	first := keys[0]
	for _, k := range keys[1:] {
		if k < first {
			first = k
		}
	}
	return &dto.FieldMessage{Field: first, Message: errs[first]}
}
