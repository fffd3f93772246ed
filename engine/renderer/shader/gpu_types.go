package shader

import _ "embed"

// GPUVertexSource is the canonical WGSL definition of the VertexInput struct
// (position: float3, normal: float3, uv: float2, tangent: float4; 48 bytes).
//
//go:embed assets/vertex.wgsl
var GPUVertexSource string
