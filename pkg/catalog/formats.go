package catalog

// Task types the catalog reports for a project
const (
	TaskObjectDetection      = "object-detection"
	TaskClassification       = "classification"
	TaskInstanceSegmentation = "instance-segmentation"
	TaskSemanticSegmentation = "semantic-segmentation"
)

// Export format preference per task type. Only the head of the list is
// attempted; walking the rest on failure is a possible future
// enhancement, not current behavior.
var formatPriority = map[string][]string{
	TaskObjectDetection:      {"yolov8", "yolov5", "darknet", "coco", "voc"},
	TaskClassification:       {"folder", "multiclass"},
	TaskInstanceSegmentation: {"coco-segmentation", "yolov8", "coco"},
	TaskSemanticSegmentation: {"png-mask-semantic", "coco-segmentation"},
}

// Unrecognized task types fall back to the generic ordering
var defaultFormats = []string{"yolov8", "coco", "folder"}

// FormatsFor returns the export format preference for a task type
func FormatsFor(taskType string) []string {
	if formats, ok := formatPriority[taskType]; ok {
		return formats
	}
	return defaultFormats
}

// PrimaryFormat returns the single format attempted for a task type
func PrimaryFormat(taskType string) string {
	return FormatsFor(taskType)[0]
}
