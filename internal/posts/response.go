package posts

import "net/http"

const (
	typeEcho  = "echo"
	typeError = "error"
)

// Response is the single reply produced for one request.
type Response struct {
	Status int
	Body   any
}

type echoBody struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

type listBody struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Collection  []Post `json:"collection"`
}

type dbErrorBody struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Text        string `json:"text"`
}

func listed(collection []Post) Response {
	if collection == nil {
		collection = []Post{}
	}
	return Response{
		Status: http.StatusOK,
		Body:   listBody{Type: typeEcho, Description: "GET", Collection: collection},
	}
}

func created(description string) Response {
	return Response{
		Status: http.StatusCreated,
		Body:   echoBody{Type: typeEcho, Description: description},
	}
}

func invalidParameters() Response {
	return Response{
		Status: http.StatusBadRequest,
		Body:   echoBody{Type: typeError, Description: "Invalid parameters"},
	}
}

func dbError(err error) Response {
	return Response{
		Status: http.StatusFailedDependency,
		Body:   dbErrorBody{Type: typeError, Description: "Error DB", Text: err.Error()},
	}
}
