package rpc

import "github.com/koharu-go/koharu/pkg/kerr"

// Method is the closed set of RPC methods the command plane dispatches.
// New methods are added here and in dispatch, never through a runtime
// registry.
type Method string

const (
	MethodAppVersion         Method = "appVersion"
	MethodDevice             Method = "device"
	MethodGetDocuments       Method = "getDocuments"
	MethodListFontFamilies   Method = "listFontFamilies"
	MethodLlmList            Method = "llmList"
	MethodLlmReady           Method = "llmReady"
	MethodLlmOffload         Method = "llmOffload"
	MethodProcessCancel      Method = "processCancel"
	MethodGetDocument        Method = "getDocument"
	MethodGetThumbnail       Method = "getThumbnail"
	MethodExportDocument     Method = "exportDocument"
	MethodOpenDocuments      Method = "openDocuments"
	MethodOpenExternal       Method = "openExternal"
	MethodDetect             Method = "detect"
	MethodOcr                Method = "ocr"
	MethodInpaint            Method = "inpaint"
	MethodUpdateInpaintMask  Method = "updateInpaintMask"
	MethodUpdateBrushLayer   Method = "updateBrushLayer"
	MethodInpaintPartial     Method = "inpaintPartial"
	MethodRender             Method = "render"
	MethodUpdateTextBlocks   Method = "updateTextBlocks"
	MethodLlmLoad            Method = "llmLoad"
	MethodLlmGenerate        Method = "llmGenerate"
	MethodProcess            Method = "process"
	MethodDilateMask         Method = "dilateMask"
	MethodErodeMask          Method = "erodeMask"
	MethodUpdateTextBlock    Method = "updateTextBlock"
	MethodAddTextBlock       Method = "addTextBlock"
	MethodRemoveTextBlock    Method = "removeTextBlock"
)

var allMethods = []Method{
	MethodAppVersion, MethodDevice, MethodGetDocuments, MethodListFontFamilies,
	MethodLlmList, MethodLlmReady, MethodLlmOffload, MethodProcessCancel,
	MethodGetDocument, MethodGetThumbnail, MethodExportDocument, MethodOpenDocuments,
	MethodOpenExternal, MethodDetect, MethodOcr, MethodInpaint, MethodUpdateInpaintMask,
	MethodUpdateBrushLayer, MethodInpaintPartial, MethodRender, MethodUpdateTextBlocks,
	MethodLlmLoad, MethodLlmGenerate, MethodProcess,
	MethodDilateMask, MethodErodeMask, MethodUpdateTextBlock, MethodAddTextBlock, MethodRemoveTextBlock,
}

var methodSet = func() map[Method]bool {
	m := make(map[Method]bool, len(allMethods))
	for _, v := range allMethods {
		m[v] = true
	}
	return m
}()

// ParseMethod validates name against the closed method registry.
func ParseMethod(name string) (Method, error) {
	m := Method(name)
	if !methodSet[m] {
		return "", kerr.New(kerr.BadInput, "Unknown method: "+name)
	}
	return m, nil
}
