package apitester

// validateSchema checks value against a minimal JSON-Schema-like subset
// sufficient for §3's expected_response_schema contract: "type" (object,
// array, string, number, boolean) and, for objects, "required" field
// presence. Anything beyond that (nested property schemas, enums,
// formats) is out of scope — the executors only ever assert shape, not
// full-document conformance.
func validateSchema(value interface{}, schema map[string]interface{}) bool {
	if t, ok := schema["type"].(string); ok {
		if !matchesType(value, t) {
			return false
		}
	}
	if t, _ := schema["type"].(string); t == "object" || t == "" {
		obj, ok := value.(map[string]interface{})
		if required, hasRequired := schema["required"].([]interface{}); hasRequired {
			if !ok {
				return false
			}
			for _, r := range required {
				name, _ := r.(string)
				if _, present := obj[name]; !present {
					return false
				}
			}
		}
	}
	return true
}

func matchesType(value interface{}, schemaType string) bool {
	switch schemaType {
	case "object":
		_, ok := value.(map[string]interface{})
		return ok
	case "array":
		_, ok := value.([]interface{})
		return ok
	case "string":
		_, ok := value.(string)
		return ok
	case "number", "integer":
		_, ok := value.(float64)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	default:
		return true
	}
}
