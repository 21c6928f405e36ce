package main

type Settings struct {
	Port        int    `env:"PORT,default=8000"`
	BasePath    string `env:"BASE_PATH,default=/chat"`
	LogEncoding string `env:"LOG_ENCODING,default=console"`

	JWTSecret      string   `env:"JWT_SECRET,required=true"`
	APIKeys        []string `env:"API_KEYS"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS"`

	MongoURI     string `env:"MONGODB_URI,default=mongodb://localhost:27017"`
	DatabaseName string `env:"MONGODB_DATABASE,default=projecthub"`

	StoreTimeoutSeconds int `env:"STORE_TIMEOUT_SECONDS,default=5"`
	SendBuffer          int `env:"SEND_BUFFER,default=64"`

	// MessageRate bounds publish-class events per connection per second;
	// zero disables throttling.
	MessageRate  float64 `env:"MESSAGE_RATE,default=0"`
	MessageBurst int     `env:"MESSAGE_BURST,default=10"`
}
